package viewmodel

import (
	"errors"
	"fmt"

	"storefront-client/internal/apperr"
	"storefront-client/internal/model"
)

type Phase string

const (
	AwaitingOrder Phase = "awaiting_order"
	ReadyToPay    Phase = "ready_to_pay"
	Authorizing   Phase = "authorizing"
	Capturing     Phase = "capturing"
	Paid          Phase = "paid"
	Failed        Phase = "failed"
)

// FailureKind tells an authorization failure (nothing was charged) from a capture
// failure (the provider took the money, the backend did not record it).
type FailureKind string

const (
	FailureAuthorization FailureKind = "authorization"
	FailureCapture       FailureKind = "capture"
)

var (
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrCaptureInProgress = errors.New("a payment capture for this order is already in progress")
)

// PaymentState is the payment screen state. Failure, Kind and Message describe the
// most recent failure and survive the return to ReadyToPay so the screen can show it.
type PaymentState struct {
	Phase     Phase       `json:"phase"`
	OrderID   string      `json:"orderId,omitempty"`
	ReceiptID string      `json:"receiptId,omitempty"`
	Failure   FailureKind `json:"failure,omitempty"`
	Kind      apperr.Kind `json:"errorKind,omitempty"`
	Message   string      `json:"error,omitempty"`
}

type PaymentEventType int

const (
	OrderLoaded PaymentEventType = iota
	AuthorizationStarted
	Approved
	CaptureSucceeded
	CaptureFailed
	AuthorizationFailed
	Recovered
)

func (t PaymentEventType) String() string {
	switch t {
	case OrderLoaded:
		return "order_loaded"
	case AuthorizationStarted:
		return "authorization_started"
	case Approved:
		return "approved"
	case CaptureSucceeded:
		return "capture_succeeded"
	case CaptureFailed:
		return "capture_failed"
	case AuthorizationFailed:
		return "authorization_failed"
	case Recovered:
		return "recovered"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

type PaymentEvent struct {
	Type      PaymentEventType
	Order     *model.Order
	ReceiptID string
	Err       error
}

// Next is the payment state machine. It has no side effects; an event that does not
// apply to s returns s unchanged with an error.
func Next(s PaymentState, e PaymentEvent) (PaymentState, error) {
	invalid := func() (PaymentState, error) {
		return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e.Type, s.Phase)
	}

	switch e.Type {
	case OrderLoaded:
		if e.Order == nil {
			return invalid()
		}
		switch s.Phase {
		case AwaitingOrder, ReadyToPay:
		case Paid:
			if e.Order.IsPaid {
				return PaymentState{Phase: Paid, OrderID: e.Order.ID, ReceiptID: s.ReceiptID}, nil
			}
			return invalid()
		default:
			return invalid()
		}
		if e.Order.IsPaid {
			return PaymentState{Phase: Paid, OrderID: e.Order.ID}, nil
		}
		next := s
		next.Phase = ReadyToPay
		next.OrderID = e.Order.ID
		return next, nil

	case AuthorizationStarted:
		if s.Phase != ReadyToPay && s.Phase != Authorizing {
			return invalid()
		}
		return PaymentState{Phase: Authorizing, OrderID: s.OrderID}, nil

	case Approved:
		switch s.Phase {
		case Authorizing:
			return PaymentState{Phase: Capturing, OrderID: s.OrderID, ReceiptID: e.ReceiptID}, nil
		case Capturing:
			return s, ErrCaptureInProgress
		}
		return invalid()

	case CaptureSucceeded:
		if s.Phase != Capturing || e.Order == nil {
			return invalid()
		}
		if !e.Order.IsPaid {
			return captureFailed(s, apperr.New(apperr.KindServer, "order is still unpaid after payment")), nil
		}
		return PaymentState{Phase: Paid, OrderID: s.OrderID, ReceiptID: s.ReceiptID}, nil

	case CaptureFailed:
		if s.Phase != Capturing {
			return invalid()
		}
		return captureFailed(s, e.Err), nil

	case AuthorizationFailed:
		if s.Phase != Authorizing {
			return invalid()
		}
		err := e.Err
		if err == nil {
			err = errors.New("payment was not authorized")
		}
		providerErr := apperr.Wrap(apperr.KindPaymentProvider, err)
		return PaymentState{
			Phase:   Failed,
			OrderID: s.OrderID,
			Failure: FailureAuthorization,
			Kind:    providerErr.Kind,
			Message: providerErr.Message,
		}, nil

	case Recovered:
		if s.Phase != Failed {
			return invalid()
		}
		next := s
		next.Phase = ReadyToPay
		return next, nil
	}

	return invalid()
}

func captureFailed(s PaymentState, err error) PaymentState {
	if err == nil {
		err = errors.New("payment could not be recorded")
	}
	captureErr := apperr.Capture(err, s.ReceiptID)
	return PaymentState{
		Phase:     Failed,
		OrderID:   s.OrderID,
		ReceiptID: s.ReceiptID,
		Failure:   FailureCapture,
		Kind:      captureErr.Kind,
		Message:   captureErr.Message,
	}
}
