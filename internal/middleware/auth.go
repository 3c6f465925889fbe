package middleware

import (
	"net/http"

	"storefront-client/internal/dto"
	"storefront-client/internal/session"

	"github.com/labstack/echo/v4"
)

// RequireSession rejects screen requests until someone has signed in.
func RequireSession(sess *session.Context) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			current := sess.Current()
			if current == nil {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
					Message: session.ErrNoSession.Message,
					Kind:    string(session.ErrNoSession.Kind),
				})
			}
			c.Set("user_id", current.ID)
			return next(c)
		}
	}
}
