package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-client/internal/client"
	"storefront-client/internal/config"
	"storefront-client/internal/logging"
	"storefront-client/internal/repository"
	"storefront-client/internal/server"
	"storefront-client/internal/service"
	"storefront-client/internal/session"
	"storefront-client/internal/viewmodel"
	"storefront-client/internal/widget"
	"storefront-client/internal/worker"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := client.InitStoreDB(cfg.Session.StoreDSN)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	storeClient := client.NewStoreClient(&cfg.Backend)

	sessionRepo := repository.NewSessionRepository(db)
	reconciliationRepo := repository.NewReconciliationRepository(db)

	sess := session.NewContext(sessionRepo, cfg.Session.StoreKey, logger)
	if err := sess.Rehydrate(context.Background()); err != nil {
		logger.Warn("could not restore session", zap.Error(err))
	}

	newWidget := paypalWidgets(cfg, logger)
	if cfg.Payment.Provider == "braintree" {
		newWidget = braintreeWidgets(cfg, logger)
	}

	orderService := service.NewOrderService(
		storeClient,
		sess,
		reconciliationRepo,
		newWidget,
		cfg.Payment.Provider,
		cfg.Payment.Currency,
		logger,
	)
	userService := service.NewUserService(
		sess,
		viewmodel.NewProfileUpdateViewModel(storeClient, sess, cfg.Profile.RequirePasswordConfirmation, logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler := worker.NewReconciliationWorker(reconciliationRepo, storeClient, sess, cfg.Reconcile.Interval, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("reconciliation worker stopped", zap.Error(err))
		}
	}()

	srv := server.NewServer(sess, userService, orderService, logger)

	serverAddr := cfg.HTTP.Addr()
	logger.Info("starting HTTP server",
		zap.String("addr", serverAddr),
		zap.String("environment", cfg.Environment.Name),
		zap.String("payment_provider", cfg.Payment.Provider),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	orderService.Reset()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
}

func paypalWidgets(cfg *config.Config, logger *zap.Logger) service.WidgetFactory {
	return func() widget.Widget {
		return widget.NewPaypalCheckout(func(clientID string) client.PaypalClient {
			return client.NewPaypalClient(&cfg.Paypal, clientID)
		}, cfg.BaseURL, logger)
	}
}

func braintreeWidgets(cfg *config.Config, logger *zap.Logger) service.WidgetFactory {
	braintreeClient := client.NewBraintreeClient(&cfg.BrainTree)
	return func() widget.Widget {
		return widget.NewBraintreeDropIn(braintreeClient, logger)
	}
}
