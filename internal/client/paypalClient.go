package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"storefront-client/internal/config"
	"storefront-client/internal/model"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaypalClient interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureOrderResponse, error)
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
}

type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

type CreateOrderResponse struct {
	OrderID    string
	ApproveURL string
}

// CaptureOrderResponse keeps the raw capture body; it is forwarded verbatim to the
// backend as the payment receipt.
type CaptureOrderResponse struct {
	Result model.PaypalCaptureResult
	Raw    json.RawMessage
}

// PaypalError is a non-2xx answer from the PayPal REST API.
type PaypalError struct {
	StatusCode int
	Body       string
}

func (e *PaypalError) Error() string {
	return fmt.Sprintf("paypal error %d: %s", e.StatusCode, e.Body)
}

// NewPaypalClient builds a client for the REST app identified by clientID. The id is
// the one the storefront backend hands out; the secret comes from local config.
func NewPaypalClient(paypalCfg *config.Paypal, clientID string) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         paypalCfg.BaseApiURL,
		paypalClientID:     clientID,
		paypalClientSecret: paypalCfg.ClientSecret,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", &PaypalError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}

	return res.AccessToken, nil
}

func (c *paypalClientImpl) CreateOrder(ctx context.Context, orderReq *CreateOrderRequest) (*CreateOrderResponse, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": orderReq.ReferenceID,
				"amount": map[string]string{
					"currency_code": orderReq.Currency,
					"value":         orderReq.Amount.StringFixed(2),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": orderReq.ReturnURL,
			"cancel_url": orderReq.CancelURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v2/checkout/orders",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal create order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &PaypalError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result model.PaypalCreateOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}

	return &CreateOrderResponse{
		OrderID:    result.ID,
		ApproveURL: _extractApproveURL(result.Links),
	}, nil
}

func (c *paypalClientImpl) CaptureOrder(ctx context.Context, orderID string) (*CaptureOrderResponse, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	url := fmt.Sprintf(
		"%s/v2/checkout/orders/%s/capture",
		c.baseApiURL,
		orderID,
	)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create capture request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	// same order, same request id: PayPal answers a repeated capture with the first result
	req.Header.Set("PayPal-Request-Id", captureRequestID(orderID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal capture request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read capture response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &PaypalError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result model.PaypalCaptureResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}

	return &CaptureOrderResponse{
		Result: result,
		Raw:    json.RawMessage(body),
	}, nil
}

func captureRequestID(orderID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("paypal-capture:"+orderID)).String()
}

func _extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}
