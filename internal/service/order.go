package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-client/internal/apperr"
	"storefront-client/internal/client"
	"storefront-client/internal/dto"
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"
	"storefront-client/internal/repository"
	"storefront-client/internal/session"
	"storefront-client/internal/viewmodel"
	"storefront-client/internal/widget"

	"go.uber.org/zap"
)

// WidgetFactory builds the payment widget for one order screen.
type WidgetFactory func() widget.Widget

var (
	ErrWrongProvider   = apperr.New(apperr.KindValidation, "this storefront does not take Braintree payments")
	ErrPaymentNotReady = apperr.New(apperr.KindValidation, "payment is not available for this order yet")
	ErrNoOrderScreen   = apperr.New(apperr.KindValidation, "open the order before paying for it")
)

type OrderService interface {
	History(ctx context.Context) fetch.State[viewmodel.OrderPayload]
	Screen(ctx context.Context, orderID string) *dto.OrderScreen
	Checkout(ctx context.Context, orderID string) (*dto.CheckoutResponse, error)
	Approve(ctx context.Context, orderID, providerRef string) (*dto.OrderScreen, error)
	ApproveBraintree(ctx context.Context, orderID, nonce string) (*dto.OrderScreen, error)
	Cancel(ctx context.Context, orderID, providerRef string) *dto.OrderScreen
	PendingReconciliations(ctx context.Context) ([]*model.Reconciliation, error)
	// Reset unmounts every screen, cancelling their requests.
	Reset()
}

type orderScreen struct {
	orders  *viewmodel.OrderFetchViewModel
	payment *viewmodel.PaymentCaptureViewModel
}

type orderServiceImpl struct {
	store     client.StoreClient
	session   *session.Context
	journal   repository.ReconciliationRepository
	guard     *viewmodel.CaptureGuard
	newWidget WidgetFactory
	provider  string
	currency  string
	logger    *zap.Logger

	mu      sync.Mutex
	history *viewmodel.OrderFetchViewModel
	screens map[string]*orderScreen
}

func NewOrderService(
	store client.StoreClient,
	session *session.Context,
	journal repository.ReconciliationRepository,
	newWidget WidgetFactory,
	provider string,
	currency string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		store:     store,
		session:   session,
		journal:   journal,
		guard:     viewmodel.NewCaptureGuard(),
		newWidget: newWidget,
		provider:  provider,
		currency:  currency,
		logger:    logger,
		history:   viewmodel.NewOrderFetchViewModel(store, session, logger),
		screens:   make(map[string]*orderScreen),
	}
}

func (s *orderServiceImpl) History(ctx context.Context) fetch.State[viewmodel.OrderPayload] {
	s.mu.Lock()
	history := s.history
	s.mu.Unlock()

	return history.Load(ctx, "")
}

func (s *orderServiceImpl) Screen(ctx context.Context, orderID string) *dto.OrderScreen {
	sc := s.screen(orderID, true)

	st := sc.orders.Load(ctx, orderID)
	if st.Status == fetch.Success && st.Value.Order != nil {
		if err := sc.payment.OrderLoaded(ctx, st.Value.Order); err != nil && !errors.Is(err, viewmodel.ErrInvalidTransition) {
			s.logger.Warn("payment setup failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	return view(sc)
}

func (s *orderServiceImpl) Checkout(ctx context.Context, orderID string) (*dto.CheckoutResponse, error) {
	sc := s.screen(orderID, false)
	if sc == nil || sc.payment.State().Phase == viewmodel.AwaitingOrder {
		s.Screen(ctx, orderID)
		sc = s.screen(orderID, false)
	}
	if !sc.payment.WidgetReady() {
		return nil, ErrPaymentNotReady
	}

	auth, err := sc.payment.Begin(ctx)
	if err != nil {
		if errors.Is(err, widget.ErrNotMounted) {
			return nil, ErrPaymentNotReady
		}
		return nil, fmt.Errorf("begin checkout: %w", err)
	}

	return &dto.CheckoutResponse{
		OrderID:          orderID,
		ProviderOrderID:  auth.ProviderOrderID,
		OrderApprovalURL: auth.ApproveURL,
	}, nil
}

func (s *orderServiceImpl) Approve(ctx context.Context, orderID, providerRef string) (*dto.OrderScreen, error) {
	sc := s.screen(orderID, false)
	if sc == nil {
		return nil, ErrNoOrderScreen
	}

	if err := sc.payment.Approve(ctx, providerRef); err != nil {
		return view(sc), err
	}
	return view(sc), nil
}

func (s *orderServiceImpl) ApproveBraintree(ctx context.Context, orderID, nonce string) (*dto.OrderScreen, error) {
	if s.provider != "braintree" {
		return nil, ErrWrongProvider
	}
	return s.Approve(ctx, orderID, nonce)
}

func (s *orderServiceImpl) Cancel(ctx context.Context, orderID, providerRef string) *dto.OrderScreen {
	sc := s.screen(orderID, false)
	if sc == nil {
		return nil
	}
	sc.payment.Cancel(ctx, providerRef, widget.ErrCancelled)
	return view(sc)
}

func (s *orderServiceImpl) PendingReconciliations(ctx context.Context) ([]*model.Reconciliation, error) {
	recs, err := s.journal.ListPending(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("list pending reconciliations: %w", err)
	}
	return recs, nil
}

func (s *orderServiceImpl) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Close()
	s.history = viewmodel.NewOrderFetchViewModel(s.store, s.session, s.logger)

	for id, sc := range s.screens {
		sc.orders.Close()
		sc.payment.Close()
		delete(s.screens, id)
	}
}

func (s *orderServiceImpl) screen(orderID string, create bool) *orderScreen {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.screens[orderID]; ok {
		return sc
	}
	if !create {
		return nil
	}

	logger := s.logger.With(zap.String("order_id", orderID))
	orders := viewmodel.NewOrderFetchViewModel(s.store, s.session, logger)
	sc := &orderScreen{
		orders: orders,
		payment: viewmodel.NewPaymentCaptureViewModel(viewmodel.PaymentDeps{
			Store:    s.store,
			Session:  s.session,
			Widget:   s.newWidget(),
			Guard:    s.guard,
			Journal:  s.journal,
			Sink:     orders,
			Currency: s.currency,
			Logger:   logger,
		}),
	}
	s.screens[orderID] = sc
	return sc
}

func view(sc *orderScreen) *dto.OrderScreen {
	return &dto.OrderScreen{
		Order:       sc.orders.State(),
		Payment:     sc.payment.State(),
		PaymentKeys: sc.payment.Keys(),
		WidgetReady: sc.payment.WidgetReady(),
	}
}
