// Package apperr classifies failures from backend and payment calls and turns them
// into messages a screen can show.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind string

const (
	KindNetwork         Kind = "network"
	KindAuth            Kind = "auth"
	KindValidation      Kind = "validation"
	KindPaymentProvider Kind = "payment_provider"
	KindPaymentCapture  Kind = "payment_capture"
	KindServer          Kind = "server"
	KindCanceled        Kind = "canceled"
)

// CapturePrefix marks capture failures so a screen can render them apart from fetch errors.
const CapturePrefix = "Payment received but not recorded"

var ErrDecode = errors.New("malformed response payload")

// StatusError is implemented by transport errors that carry an HTTP response.
type StatusError interface {
	error
	HTTPStatus() int
	ServerMessage() string
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: message(err), Err: err}
}

// Capture wraps a failed mark-paid call. receiptID is the provider reference the
// buyer needs when asking support to reconcile the payment.
func Capture(err error, receiptID string) *Error {
	msg := fmt.Sprintf("%s: %s", CapturePrefix, message(err))
	if receiptID != "" {
		msg = fmt.Sprintf("%s (payment reference %s)", msg, receiptID)
	}
	return &Error{Kind: KindPaymentCapture, Message: msg, Err: err}
}

// Classify reports the Kind of err without building a message.
func Classify(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatus(); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return KindAuth
		case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
			return KindValidation
		default:
			return KindServer
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrDecode) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindValidation
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return KindServer
}

// Normalize maps any failure to a classified, displayable error. nil stays nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	return &Error{Kind: Classify(err), Message: message(err), Err: err}
}

// Message is the display string for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Normalize(err).Message
}

// message prefers the backend's own {"message": ...} over the transport error text.
func message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) && statusErr.ServerMessage() != "" {
		return statusErr.ServerMessage()
	}

	return err.Error()
}
