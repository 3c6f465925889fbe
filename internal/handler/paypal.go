package handler

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"storefront-client/internal/apperr"
	"storefront-client/internal/dto"
	"storefront-client/internal/fetch"
	"storefront-client/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	orderService service.OrderService
}

func NewPaymentHandler(orderService service.OrderService) *PaymentHandler {
	return &PaymentHandler{
		orderService: orderService,
	}
}

func (h *PaymentHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.orderService.Checkout(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleSuccess is PayPal's return URL. PayPal appends its own order id as token.
func (h *PaymentHandler) HandleSuccess(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.QueryParam("order")
	token := c.QueryParam("token")
	if orderID == "" || token == "" {
		return c.String(http.StatusBadRequest, "missing order token")
	}

	screen, err := h.orderService.Approve(ctx, orderID, token)
	if err != nil {
		return c.HTML(httpError(err).Code, resultPage("Payment not completed", apperr.Message(err), orderID))
	}

	return c.HTML(http.StatusOK, resultPage("Payment approved", paidMessage(screen), orderID))
}

func (h *PaymentHandler) HandleCancel(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.QueryParam("order")
	if orderID == "" {
		return c.String(http.StatusBadRequest, "missing order")
	}

	h.orderService.Cancel(ctx, orderID, c.QueryParam("token"))
	return c.HTML(http.StatusOK, resultPage("Payment cancelled", "You have not been charged.", orderID))
}

func (h *PaymentHandler) ApproveBraintree(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BraintreeApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	screen, err := h.orderService.ApproveBraintree(ctx, c.Param("id"), req.Nonce)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, screen)
}

func paidMessage(screen *dto.OrderScreen) string {
	if screen != nil && screen.Order.Status == fetch.Success && screen.Order.Value.Order != nil && screen.Order.Value.Order.PaidAt != nil {
		return "Paid at " + screen.Order.Value.Order.PaidAt.Format("2006-01-02 15:04")
	}
	return "Your order has been paid."
}

func resultPage(title, message, orderID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>%[1]s</title>
	<style>
		body {
			font-family: Arial, sans-serif;
			text-align: center;
			margin-top: 80px;
		}
	</style>
</head>
<body>
	<h2>%[1]s</h2>
	<p>%[2]s</p>
	<p><a href="/api/screens/orders/%[3]s">Back to order</a></p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message), html.EscapeString(url.PathEscape(orderID)))
}
