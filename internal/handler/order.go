package handler

import (
	"net/http"

	"storefront-client/internal/apperr"
	"storefront-client/internal/fetch"
	"storefront-client/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	st := h.orderService.History(ctx)
	return c.JSON(stateStatus(st.Status, st.Kind), st)
}

func (h *OrderHandler) Screen(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.Param("id")
	screen := h.orderService.Screen(ctx, orderID)
	return c.JSON(stateStatus(screen.Order.Status, screen.Order.Kind), screen)
}

func (h *OrderHandler) PendingReconciliations(c echo.Context) error {
	ctx := c.Request().Context()

	recs, err := h.orderService.PendingReconciliations(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, recs)
}

// stateStatus is the HTTP status for a fetch state: errors keep their kind's status.
func stateStatus(status fetch.Status, kind apperr.Kind) int {
	if status != fetch.Error {
		return http.StatusOK
	}
	return httpError(apperr.New(kind, "")).Code
}
