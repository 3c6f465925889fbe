package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-client/internal/apperr"
	"storefront-client/internal/config"
	"storefront-client/internal/model"
)

// StoreClient talks to the storefront REST backend. Every call is authenticated
// with the bearer token of the current session.
type StoreClient interface {
	ListMyOrders(ctx context.Context, token string) ([]model.Order, error)
	GetOrder(ctx context.Context, token, orderID string) (*model.Order, error)
	PayOrder(ctx context.Context, token, orderID string, receipt json.RawMessage) (*model.Order, error)
	GetPaypalClientID(ctx context.Context, token string) (string, error)
	UpdateProfile(ctx context.Context, token string, update model.ProfileUpdate) (*model.Session, error)
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) HTTPStatus() int       { return e.StatusCode }
func (e *APIError) ServerMessage() string { return e.Message }

// DefaultTimeout is used when a Backend config leaves Timeout unset.
const DefaultTimeout = 30 * time.Second

type storeClientImpl struct {
	httpClient *http.Client
	baseURL    string
}

func NewStoreClient(backendCfg *config.Backend) StoreClient {
	timeout := backendCfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &storeClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(backendCfg.URL, "/"),
	}
}

func (c *storeClientImpl) ListMyOrders(ctx context.Context, token string) ([]model.Order, error) {
	var orders []model.Order
	if err := c.doJSON(ctx, http.MethodGet, "/api/orders/mine", token, nil, &orders); err != nil {
		return nil, fmt.Errorf("list my orders: %w", err)
	}
	return orders, nil
}

func (c *storeClientImpl) GetOrder(ctx context.Context, token, orderID string) (*model.Order, error) {
	var order model.Order
	path := "/api/orders/" + url.PathEscape(orderID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &order, nil
}

func (c *storeClientImpl) PayOrder(ctx context.Context, token, orderID string, receipt json.RawMessage) (*model.Order, error) {
	var order model.Order
	path := "/api/orders/" + url.PathEscape(orderID) + "/pay"
	if err := c.doJSON(ctx, http.MethodPut, path, token, bytes.NewReader(receipt), &order); err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", orderID, err)
	}
	return &order, nil
}

// GetPaypalClientID accepts both a plain-text body and a JSON string.
func (c *storeClientImpl) GetPaypalClientID(ctx context.Context, token string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/keys/paypal", token, nil)
	if err != nil {
		return "", fmt.Errorf("get paypal client id: %w", err)
	}

	raw := strings.TrimSpace(string(body))
	if strings.HasPrefix(raw, `"`) {
		var id string
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			return "", fmt.Errorf("decode paypal client id: %w", err)
		}
		raw = id
	}
	if raw == "" {
		return "", fmt.Errorf("get paypal client id: %w", apperr.ErrDecode)
	}

	return raw, nil
}

func (c *storeClientImpl) UpdateProfile(ctx context.Context, token string, update model.ProfileUpdate) (*model.Session, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("marshal profile update: %w", err)
	}

	var session model.Session
	if err := c.doJSON(ctx, http.MethodPut, "/api/users/profile", token, bytes.NewReader(payload), &session); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &session, nil
}

func (c *storeClientImpl) doJSON(ctx context.Context, method, path, token string, body io.Reader, out any) error {
	respBody, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *storeClientImpl) do(ctx context.Context, method, path, token string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var errBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			apiErr.Message = errBody.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
