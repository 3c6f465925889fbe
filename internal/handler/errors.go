package handler

import (
	"errors"
	"net/http"

	"storefront-client/internal/apperr"
	"storefront-client/internal/dto"
	"storefront-client/internal/viewmodel"
	"storefront-client/internal/widget"

	"github.com/labstack/echo/v4"
)

// httpError maps a classified failure to the status a screen client expects.
func httpError(err error) *echo.HTTPError {
	norm := apperr.Normalize(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, viewmodel.ErrCaptureInProgress):
		status = http.StatusConflict
	case errors.Is(err, viewmodel.ErrInvalidTransition), errors.Is(err, widget.ErrUnknownReference):
		status = http.StatusConflict
	case norm.Kind == apperr.KindAuth:
		status = http.StatusUnauthorized
	case norm.Kind == apperr.KindValidation:
		status = http.StatusBadRequest
	case norm.Kind == apperr.KindPaymentProvider:
		status = http.StatusPaymentRequired
	case norm.Kind == apperr.KindPaymentCapture, norm.Kind == apperr.KindServer:
		status = http.StatusBadGateway
	case norm.Kind == apperr.KindNetwork:
		status = http.StatusServiceUnavailable
	case norm.Kind == apperr.KindCanceled:
		status = http.StatusRequestTimeout
	}

	return echo.NewHTTPError(status, dto.ErrorResponse{Message: norm.Message, Kind: string(norm.Kind)})
}
