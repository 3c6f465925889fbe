package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-client/internal/client"
	"storefront-client/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type braintreeDropInImpl struct {
	braintree client.BraintreeClient
	logger    *zap.Logger

	mu        sync.Mutex
	mountedOK bool
	cfg       model.PaymentConfig
	cb        Callbacks
	reference string
	unit      PurchaseUnit
}

// NewBraintreeDropIn charges a drop-in nonce. Begin reserves a reference for the
// purchase unit and Approve takes the nonce the drop-in produced.
func NewBraintreeDropIn(braintree client.BraintreeClient, logger *zap.Logger) Widget {
	return &braintreeDropInImpl{
		braintree: braintree,
		logger:    logger,
	}
}

func (w *braintreeDropInImpl) Mount(cfg model.PaymentConfig, cb Callbacks) error {
	if cb.CreateOrder == nil || cb.OnApprove == nil {
		return errors.New("createOrder and onApprove callbacks are required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.mountedOK = true
	w.cfg = cfg
	w.cb = cb
	return nil
}

func (w *braintreeDropInImpl) Begin(ctx context.Context) (*Authorization, error) {
	w.mu.Lock()
	if !w.mountedOK {
		w.mu.Unlock()
		return nil, ErrNotMounted
	}
	cb := w.cb
	w.mu.Unlock()

	unit, err := cb.CreateOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	ref := uuid.NewString()

	w.mu.Lock()
	w.reference = ref
	w.unit = unit
	w.mu.Unlock()

	return &Authorization{ProviderOrderID: ref}, nil
}

// Approve charges nonce against the purchase unit reserved by the last Begin.
func (w *braintreeDropInImpl) Approve(ctx context.Context, nonce string) error {
	w.mu.Lock()
	if !w.mountedOK {
		w.mu.Unlock()
		return ErrNotMounted
	}
	cb := w.cb
	ref, unit := w.reference, w.unit
	w.reference = ""
	w.mu.Unlock()

	if ref == "" {
		return fmt.Errorf("%w: no purchase in progress", ErrUnknownReference)
	}
	if nonce == "" {
		err := errors.New("payment method nonce is required")
		notifyError(cb, err)
		return err
	}

	sale, err := w.braintree.Sale(ctx, nonce, unit.Amount)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeclined, err)
		notifyError(cb, err)
		return err
	}

	w.logger.Info("braintree sale settled",
		zap.String("order_id", unit.ReferenceID),
		zap.String("transaction_id", sale.TransactionID),
	)

	payload, err := json.Marshal(map[string]string{
		"id":          sale.TransactionID,
		"status":      sale.Status,
		"update_time": time.Now().UTC().Format(time.RFC3339),
		"amount":      sale.Amount,
		"reference":   ref,
	})
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	return cb.OnApprove(ctx, Receipt{
		ID:      sale.TransactionID,
		Status:  sale.Status,
		Payload: payload,
	})
}

func (w *braintreeDropInImpl) Cancel(_ context.Context, _ string, reason error) {
	w.mu.Lock()
	cb := w.cb
	w.reference = ""
	w.mu.Unlock()

	if reason == nil {
		reason = ErrCancelled
	}
	notifyError(cb, reason)
}
