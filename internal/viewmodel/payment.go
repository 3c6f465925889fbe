package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-client/internal/apperr"
	"storefront-client/internal/client"
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"
	"storefront-client/internal/repository"
	"storefront-client/internal/widget"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderSink receives the order the backend returns after a successful capture.
type OrderSink interface {
	Replace(order *model.Order) error
}

type PaymentDeps struct {
	Store    client.StoreClient
	Session  TokenSource
	Widget   widget.Widget
	Guard    *CaptureGuard
	Journal  repository.ReconciliationRepository
	Sink     OrderSink
	Currency string
	Logger   *zap.Logger
}

type PaymentCaptureViewModel struct {
	store    client.StoreClient
	session  TokenSource
	widget   widget.Widget
	guard    *CaptureGuard
	journal  repository.ReconciliationRepository
	sink     OrderSink
	currency string
	logger   *zap.Logger

	keys *fetch.Tracker[model.PaymentConfig]

	mu        sync.Mutex
	state     PaymentState
	order     *model.Order
	mounted   bool
	listeners []func(PaymentState)
}

func NewPaymentCaptureViewModel(deps PaymentDeps) *PaymentCaptureViewModel {
	guard := deps.Guard
	if guard == nil {
		guard = NewCaptureGuard()
	}
	currency := deps.Currency
	if currency == "" {
		currency = "GBP"
	}

	return &PaymentCaptureViewModel{
		store:    deps.Store,
		session:  deps.Session,
		widget:   deps.Widget,
		guard:    guard,
		journal:  deps.Journal,
		sink:     deps.Sink,
		currency: currency,
		logger:   deps.Logger,
		keys:     fetch.NewTracker[model.PaymentConfig](),
		state:    PaymentState{Phase: AwaitingOrder},
	}
}

func (vm *PaymentCaptureViewModel) State() PaymentState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

func (vm *PaymentCaptureViewModel) Keys() fetch.State[model.PaymentConfig] {
	return vm.keys.State()
}

// WidgetReady reports whether the payment widget should be shown.
func (vm *PaymentCaptureViewModel) WidgetReady() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.mounted && (vm.state.Phase == ReadyToPay || vm.state.Phase == Authorizing)
}

// OnChange registers fn for every committed payment transition.
func (vm *PaymentCaptureViewModel) OnChange(fn func(PaymentState)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.listeners = append(vm.listeners, fn)
}

// OrderLoaded feeds a freshly loaded order into the machine. An unpaid order loads
// the payment keys and mounts the widget once they arrive.
func (vm *PaymentCaptureViewModel) OrderLoaded(ctx context.Context, order *model.Order) error {
	if order == nil {
		return fmt.Errorf("order loaded: nil order")
	}

	st, err := vm.apply(PaymentEvent{Type: OrderLoaded, Order: order})
	if err != nil {
		return err
	}
	if st.Phase != ReadyToPay {
		return nil
	}

	vm.mu.Lock()
	vm.order = order
	mounted := vm.mounted
	vm.mu.Unlock()
	if mounted {
		return nil
	}

	keys := vm.keys.Run(ctx, func(ctx context.Context) (model.PaymentConfig, error) {
		token, err := vm.session.Token()
		if err != nil {
			return model.PaymentConfig{}, err
		}
		clientID, err := vm.store.GetPaypalClientID(ctx, token)
		if err != nil {
			return model.PaymentConfig{}, err
		}
		return model.PaymentConfig{ClientID: clientID, Currency: vm.currency}, nil
	})
	if keys.Status != fetch.Success {
		vm.logger.Warn("payment keys unavailable",
			zap.String("order_id", order.ID),
			zap.String("error", keys.Message),
		)
		return apperr.New(keys.Kind, keys.Message)
	}

	if err := vm.widget.Mount(keys.Value, vm.callbacks()); err != nil {
		return fmt.Errorf("mount payment widget: %w", err)
	}

	vm.mu.Lock()
	vm.mounted = true
	vm.mu.Unlock()
	return nil
}

// Begin starts an authorization with the provider.
func (vm *PaymentCaptureViewModel) Begin(ctx context.Context) (*widget.Authorization, error) {
	return vm.widget.Begin(ctx)
}

// Approve hands the provider's approval back to the widget.
func (vm *PaymentCaptureViewModel) Approve(ctx context.Context, providerRef string) error {
	return vm.widget.Approve(ctx, providerRef)
}

func (vm *PaymentCaptureViewModel) Cancel(ctx context.Context, providerRef string, reason error) {
	vm.widget.Cancel(ctx, providerRef, reason)
}

// Close drops a pending keys request. A capture already sent to the backend is left to finish.
func (vm *PaymentCaptureViewModel) Close() {
	vm.keys.Close()
}

func (vm *PaymentCaptureViewModel) callbacks() widget.Callbacks {
	return widget.Callbacks{
		CreateOrder: vm.createOrder,
		OnApprove:   vm.onApprove,
		OnError:     vm.onError,
	}
}

func (vm *PaymentCaptureViewModel) createOrder(context.Context) (widget.PurchaseUnit, error) {
	vm.mu.Lock()
	order := vm.order
	vm.mu.Unlock()
	if order == nil {
		return widget.PurchaseUnit{}, fmt.Errorf("%w: no order loaded", ErrInvalidTransition)
	}

	if _, err := vm.apply(PaymentEvent{Type: AuthorizationStarted}); err != nil {
		return widget.PurchaseUnit{}, err
	}

	return widget.PurchaseUnit{
		ReferenceID: order.ID,
		Amount:      order.TotalPrice,
		Currency:    vm.currency,
	}, nil
}

func (vm *PaymentCaptureViewModel) onApprove(ctx context.Context, receipt widget.Receipt) error {
	vm.mu.Lock()
	orderID := vm.state.OrderID
	vm.mu.Unlock()

	// the buyer has been charged; recording it must not depend on the screen staying open
	ctx = context.WithoutCancel(ctx)

	if !vm.guard.Acquire(orderID) {
		return vm.approvalRejected(ctx, orderID, receipt, ErrCaptureInProgress)
	}
	defer vm.guard.Release(orderID)

	if _, err := vm.apply(PaymentEvent{Type: Approved, ReceiptID: receipt.ID}); err != nil {
		return vm.approvalRejected(ctx, orderID, receipt, err)
	}

	paid, err := vm.markPaid(ctx, orderID, receipt)
	if err != nil {
		return vm.captureFailed(ctx, orderID, receipt, PaymentEvent{Type: CaptureFailed, Err: err})
	}

	st, err := vm.apply(PaymentEvent{Type: CaptureSucceeded, Order: paid})
	if err != nil {
		return err
	}
	if st.Phase == Failed {
		return vm.captureFailed(ctx, orderID, receipt, PaymentEvent{})
	}

	vm.mu.Lock()
	vm.order = paid
	vm.mu.Unlock()

	if vm.sink != nil {
		if err := vm.sink.Replace(paid); err != nil {
			vm.logger.Warn("failed to replace order after payment", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	vm.logger.Info("payment captured",
		zap.String("order_id", orderID),
		zap.String("receipt_id", receipt.ID),
	)
	return nil
}

func (vm *PaymentCaptureViewModel) markPaid(ctx context.Context, orderID string, receipt widget.Receipt) (*model.Order, error) {
	token, err := vm.session.Token()
	if err != nil {
		return nil, err
	}
	return vm.store.PayOrder(ctx, token, orderID, receipt.Payload)
}

// captureFailed applies failure (unless the machine is already in Failed), journals
// the receipt and returns to ReadyToPay.
func (vm *PaymentCaptureViewModel) captureFailed(ctx context.Context, orderID string, receipt widget.Receipt, failure PaymentEvent) error {
	var st PaymentState
	if failure.Type == CaptureFailed {
		var err error
		if st, err = vm.apply(failure); err != nil {
			return err
		}
	} else {
		st = vm.State()
	}

	vm.logger.Error("payment capture failed",
		zap.String("order_id", orderID),
		zap.String("receipt_id", receipt.ID),
		zap.String("error", st.Message),
	)

	vm.journalReceipt(ctx, orderID, receipt, st.Message, model.ReasonUnrecorded)

	if _, err := vm.apply(PaymentEvent{Type: Recovered}); err != nil {
		vm.logger.Warn("payment recovery skipped", zap.Error(err))
	}

	return &apperr.Error{Kind: st.Kind, Message: st.Message, Err: failure.Err}
}

// approvalRejected journals a provider receipt the machine would not take. The
// payment state is left as it was.
func (vm *PaymentCaptureViewModel) approvalRejected(ctx context.Context, orderID string, receipt widget.Receipt, cause error) error {
	reason := model.ReasonUnrecorded
	if errors.Is(cause, ErrCaptureInProgress) || vm.State().Phase == Paid {
		reason = model.ReasonDuplicate
	}
	captureErr := apperr.Capture(cause, receipt.ID)

	vm.logger.Error("payment capture failed",
		zap.String("order_id", orderID),
		zap.String("receipt_id", receipt.ID),
		zap.String("reason", string(reason)),
		zap.Error(cause),
	)
	vm.journalReceipt(ctx, orderID, receipt, captureErr.Message, reason)
	return captureErr
}

func (vm *PaymentCaptureViewModel) journalReceipt(ctx context.Context, orderID string, receipt widget.Receipt, message string, reason model.ReconciliationReason) {
	if vm.journal == nil {
		return
	}

	rec := &model.Reconciliation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ReceiptID: receipt.ID,
		Payload:   string(receipt.Payload),
		Message:   message,
		Reason:    reason,
		Status:    model.ReconciliationPending,
		CreatedAt: time.Now(),
	}
	if err := vm.journal.Create(ctx, rec); err != nil {
		vm.logger.Error("failed to journal capture failure", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (vm *PaymentCaptureViewModel) onError(err error) {
	if _, tErr := vm.apply(PaymentEvent{Type: AuthorizationFailed, Err: err}); tErr != nil {
		vm.logger.Debug("payment widget error ignored", zap.Error(err), zap.NamedError("transition", tErr))
		return
	}

	if errors.Is(err, widget.ErrCancelled) {
		vm.logger.Info("payment authorization cancelled", zap.String("order_id", vm.State().OrderID))
	} else {
		vm.logger.Warn("payment authorization failed", zap.String("order_id", vm.State().OrderID), zap.Error(err))
	}

	if _, tErr := vm.apply(PaymentEvent{Type: Recovered}); tErr != nil {
		vm.logger.Warn("payment recovery skipped", zap.Error(tErr))
	}
}

func (vm *PaymentCaptureViewModel) apply(e PaymentEvent) (PaymentState, error) {
	vm.mu.Lock()
	next, err := Next(vm.state, e)
	if err != nil {
		vm.mu.Unlock()
		return next, err
	}
	vm.state = next
	listeners := append([]func(PaymentState){}, vm.listeners...)
	vm.mu.Unlock()

	vm.logger.Debug("payment transition",
		zap.String("event", e.Type.String()),
		zap.String("phase", string(next.Phase)),
		zap.String("order_id", next.OrderID),
	)
	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}
