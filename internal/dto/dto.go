package dto

import (
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"
	"storefront-client/internal/viewmodel"
)

// OrderScreen is everything the order screen renders.
type OrderScreen struct {
	Order       fetch.State[viewmodel.OrderPayload] `json:"order"`
	Payment     viewmodel.PaymentState              `json:"payment"`
	PaymentKeys fetch.State[model.PaymentConfig]    `json:"paymentKeys"`
	WidgetReady bool                                `json:"widgetReady"`
}

type CheckoutResponse struct {
	OrderID          string `json:"order_id"`
	ProviderOrderID  string `json:"provider_order_id"`
	OrderApprovalURL string `json:"order_approval_url,omitempty"`
}

type BraintreeApproveRequest struct {
	Nonce string `json:"nonce"`
}

// SessionView is the session without its bearer token.
type SessionView struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func NewSessionView(s *model.Session) *SessionView {
	if s == nil {
		return nil
	}
	return &SessionView{ID: s.ID, Name: s.Name, Email: s.Email, IsAdmin: s.IsAdmin}
}

type ErrorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
