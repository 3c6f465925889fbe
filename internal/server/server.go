package server

import (
	"context"
	"net/http"

	"storefront-client/internal/handler"
	"storefront-client/internal/middleware"
	"storefront-client/internal/service"
	"storefront-client/internal/session"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo           *echo.Echo
	session        *session.Context
	userHandler    *handler.UserHandler
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
}

func NewServer(sess *session.Context, userService service.UserService, orderService service.OrderService, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:           e,
		session:        sess,
		userHandler:    handler.NewUserHandler(userService, orderService),
		orderHandler:   handler.NewOrderHandler(orderService),
		paymentHandler: handler.NewPaymentHandler(orderService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- session --------
	api.GET("/session", s.userHandler.GetSession)
	api.POST("/session", s.userHandler.SignIn)
	api.DELETE("/session", s.userHandler.SignOut)

	signedIn := middleware.RequireSession(s.session)

	// -------- screens --------
	screens := api.Group("/screens", signedIn)
	screens.GET("/orders", s.orderHandler.History)
	screens.GET("/orders/:id", s.orderHandler.Screen)
	screens.POST("/orders/:id/checkout", s.paymentHandler.Checkout)
	screens.POST("/orders/:id/braintree", s.paymentHandler.ApproveBraintree)
	screens.PUT("/profile", s.userHandler.UpdateProfile)

	api.GET("/reconciliations", s.orderHandler.PendingReconciliations, signedIn)

	// -------- paypal redirects --------
	paypal := api.Group("/paypal", signedIn)
	paypal.GET("/success", s.paymentHandler.HandleSuccess)
	paypal.GET("/cancel", s.paymentHandler.HandleCancel)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
