package handler

import (
	"net/http"

	"storefront-client/internal/dto"
	"storefront-client/internal/model"
	"storefront-client/internal/service"
	"storefront-client/internal/viewmodel"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService  service.UserService
	orderService service.OrderService
}

func NewUserHandler(userService service.UserService, orderService service.OrderService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		orderService: orderService,
	}
}

func (h *UserHandler) GetSession(c echo.Context) error {
	current := h.userService.Current()
	if current == nil {
		return c.JSON(http.StatusOK, map[string]any{"signedIn": false})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"signedIn": true,
		"user":     dto.NewSessionView(current),
	})
}

// SignIn installs the session produced by the backend's sign-in endpoint.
func (h *UserHandler) SignIn(c echo.Context) error {
	ctx := c.Request().Context()

	var req model.Session
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.userService.SignIn(ctx, &req); err != nil {
		return httpError(err)
	}
	h.orderService.Reset()

	return c.JSON(http.StatusOK, dto.NewSessionView(h.userService.Current()))
}

func (h *UserHandler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()

	h.orderService.Reset()
	if err := h.userService.SignOut(ctx); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var form viewmodel.ProfileForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	updated, err := h.userService.UpdateProfile(ctx, form)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    dto.NewSessionView(updated),
	})
}
