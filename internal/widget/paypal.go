package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"storefront-client/internal/client"
	"storefront-client/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaypalClientFactory builds a REST client for the client id served by the backend.
type PaypalClientFactory func(clientID string) client.PaypalClient

type paypalCheckoutImpl struct {
	newClient PaypalClientFactory
	returnURL string
	logger    *zap.Logger

	mu      sync.Mutex
	paypal  client.PaypalClient
	cfg     model.PaymentConfig
	cb      Callbacks
	pending map[string]PurchaseUnit
}

// NewPaypalCheckout is the hosted checkout flow: Begin creates a PayPal order and
// returns its approve link, PayPal redirects the buyer back to baseURL, and Approve
// captures the order.
func NewPaypalCheckout(newClient PaypalClientFactory, baseURL string, logger *zap.Logger) Widget {
	return &paypalCheckoutImpl{
		newClient: newClient,
		returnURL: strings.TrimRight(baseURL, "/"),
		logger:    logger,
		pending:   make(map[string]PurchaseUnit),
	}
}

func (w *paypalCheckoutImpl) Mount(cfg model.PaymentConfig, cb Callbacks) error {
	if cfg.ClientID == "" {
		return errors.New("paypal client id is required")
	}
	if cb.CreateOrder == nil || cb.OnApprove == nil {
		return errors.New("createOrder and onApprove callbacks are required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.paypal = w.newClient(cfg.ClientID)
	w.cfg = cfg
	w.cb = cb
	return nil
}

func (w *paypalCheckoutImpl) Begin(ctx context.Context) (*Authorization, error) {
	paypal, cb, err := w.mounted()
	if err != nil {
		return nil, err
	}

	unit, err := cb.CreateOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if unit.Currency == "" {
		w.mu.Lock()
		unit.Currency = w.cfg.Currency
		w.mu.Unlock()
	}

	q := url.Values{"order": {unit.ReferenceID}}.Encode()
	created, err := paypal.CreateOrder(ctx, &client.CreateOrderRequest{
		ReferenceID: unit.ReferenceID,
		Amount:      unit.Amount,
		Currency:    unit.Currency,
		ReturnURL:   w.returnURL + "/api/paypal/success?" + q,
		CancelURL:   w.returnURL + "/api/paypal/cancel?" + q,
	})
	if err != nil {
		err = fmt.Errorf("create paypal order: %w", err)
		notifyError(cb, err)
		return nil, err
	}
	if created.ApproveURL == "" {
		err = fmt.Errorf("paypal order %s has no approve link", created.OrderID)
		notifyError(cb, err)
		return nil, err
	}

	// one outstanding PayPal order per screen: approving a replaced one must not capture
	w.mu.Lock()
	for ref := range w.pending {
		w.logger.Info("paypal order replaced", zap.String("order_id", unit.ReferenceID), zap.String("paypal_order_id", ref))
	}
	w.pending = map[string]PurchaseUnit{created.OrderID: unit}
	w.mu.Unlock()

	w.logger.Info("paypal order created",
		zap.String("order_id", unit.ReferenceID),
		zap.String("paypal_order_id", created.OrderID),
	)

	return &Authorization{
		ProviderOrderID: created.OrderID,
		ApproveURL:      created.ApproveURL,
	}, nil
}

func (w *paypalCheckoutImpl) Approve(ctx context.Context, providerRef string) error {
	paypal, cb, err := w.mounted()
	if err != nil {
		return err
	}
	unit, ok := w.take(providerRef)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReference, providerRef)
	}

	captured, err := paypal.CaptureOrder(ctx, providerRef)
	if err != nil {
		err = fmt.Errorf("capture paypal order: %w", err)
		notifyError(cb, err)
		return err
	}
	if captured.Result.Status != "COMPLETED" {
		err = fmt.Errorf("%w: paypal status %s", ErrDeclined, captured.Result.Status)
		notifyError(cb, err)
		return err
	}

	w.checkCapturedAmount(unit, captured.Result)

	return cb.OnApprove(ctx, Receipt{
		ID:      captured.Result.ID,
		Status:  captured.Result.Status,
		Payload: captured.Raw,
	})
}

// Cancel abandons the pending PayPal order. A cancel for an order that was already
// replaced or approved is ignored; an empty providerRef abandons whatever is pending.
func (w *paypalCheckoutImpl) Cancel(_ context.Context, providerRef string, reason error) {
	w.mu.Lock()
	cb := w.cb
	if providerRef == "" {
		w.pending = make(map[string]PurchaseUnit)
	} else {
		if _, ok := w.pending[providerRef]; !ok {
			w.mu.Unlock()
			w.logger.Info("stale paypal cancel ignored", zap.String("paypal_order_id", providerRef))
			return
		}
		delete(w.pending, providerRef)
	}
	w.mu.Unlock()

	if reason == nil {
		reason = ErrCancelled
	}
	notifyError(cb, reason)
}

func (w *paypalCheckoutImpl) mounted() (client.PaypalClient, Callbacks, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paypal == nil {
		return nil, Callbacks{}, ErrNotMounted
	}
	return w.paypal, w.cb, nil
}

func (w *paypalCheckoutImpl) take(providerRef string) (PurchaseUnit, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	unit, ok := w.pending[providerRef]
	delete(w.pending, providerRef)
	return unit, ok
}

// checkCapturedAmount logs captures that do not add up to the purchase unit. The
// receipt is forwarded regardless.
func (w *paypalCheckoutImpl) checkCapturedAmount(unit PurchaseUnit, result model.PaypalCaptureResult) {
	total := decimal.Zero
	currency := ""
	for _, pu := range result.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			value, err := decimal.NewFromString(c.Amount.Value)
			if err != nil {
				w.logger.Warn("unreadable paypal capture amount", zap.String("capture_id", c.ID), zap.Error(err))
				continue
			}
			total = total.Add(value)
			currency = c.Amount.Currency
		}
	}

	fields := []zap.Field{
		zap.String("order_id", unit.ReferenceID),
		zap.String("paypal_order_id", result.ID),
		zap.String("payer_id", result.Payer.PayerID),
		zap.String("captured", total.StringFixed(2)+" "+currency),
	}
	if currency == "" {
		w.logger.Info("paypal order captured", fields...)
		return
	}
	if !total.Equal(unit.Amount) || (unit.Currency != "" && currency != unit.Currency) {
		w.logger.Error("paypal capture amount differs from order total",
			append(fields, zap.String("expected", unit.Amount.StringFixed(2)+" "+unit.Currency))...)
		return
	}
	w.logger.Info("paypal order captured", fields...)
}
