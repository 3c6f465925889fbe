// Package widget adapts external payment providers to the callback contract the
// payment view-model drives: the host asks for a purchase unit, the provider
// authorizes it, and the outcome comes back through OnApprove or OnError.
package widget

import (
	"context"
	"encoding/json"
	"errors"

	"storefront-client/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotMounted       = errors.New("payment widget is not mounted")
	ErrCancelled        = errors.New("payment was cancelled by the buyer")
	ErrDeclined         = errors.New("payment was declined by the provider")
	ErrUnknownReference = errors.New("unknown payment reference")
)

// PurchaseUnit is what CreateOrder hands to the provider. ReferenceID is the backend order id.
type PurchaseUnit struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
}

// Receipt is the provider's confirmation. Payload is sent verbatim to the backend.
type Receipt struct {
	ID      string
	Status  string
	Payload json.RawMessage
}

type Callbacks struct {
	CreateOrder func(ctx context.Context) (PurchaseUnit, error)
	// OnApprove runs after the provider has taken the payment. Its error is returned
	// from Approve and does not trigger OnError.
	OnApprove func(ctx context.Context, receipt Receipt) error
	OnError   func(err error)
}

// Authorization is the result of Begin: the provider's reference for the pending
// payment and, for redirect flows, where to send the buyer.
type Authorization struct {
	ProviderOrderID string `json:"providerOrderId"`
	ApproveURL      string `json:"approveUrl,omitempty"`
}

type Widget interface {
	// Mount renders the widget. It is called once the payment keys are loaded.
	Mount(cfg model.PaymentConfig, cb Callbacks) error
	Begin(ctx context.Context) (*Authorization, error)
	Approve(ctx context.Context, providerRef string) error
	Cancel(ctx context.Context, providerRef string, reason error)
}

func notifyError(cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
