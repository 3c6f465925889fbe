package client

import (
	"context"
	"fmt"
	"storefront-client/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type BraintreeClient interface {
	// Sale charges a drop-in payment method nonce and submits it for settlement
	Sale(ctx context.Context, nonce string, amount decimal.Decimal) (*SaleResult, error)
}

type SaleResult struct {
	TransactionID string
	Status        string
	Amount        string
}

// DeclinedError is a sale Braintree created but will not settle.
type DeclinedError struct {
	TransactionID string
	Status        string
	Reason        string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("braintree transaction %s %s: %s", e.TransactionID, e.Status, e.Reason)
}

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

// NewBraintreeClient initializes the Braintree SDK gateway
func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) Sale(ctx context.Context, nonce string, amount decimal.Decimal) (*SaleResult, error) {
	// Braintree expects NewDecimal(unscaled, scale): "42.50" -> NewDecimal(4250, 2)
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodNonce: nonce,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transaction creation failed: %w", err)
	}

	switch tx.Status {
	case braintree.TransactionStatusSubmittedForSettlement,
		braintree.TransactionStatusSettling,
		braintree.TransactionStatusSettled:
	default:
		return nil, &DeclinedError{TransactionID: tx.Id, Status: string(tx.Status), Reason: tx.ProcessorResponseText}
	}

	return &SaleResult{
		TransactionID: tx.Id,
		Status:        string(tx.Status),
		Amount:        amount.StringFixed(2),
	}, nil
}
