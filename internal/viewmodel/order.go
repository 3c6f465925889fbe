// Package viewmodel holds the screen state behind the order, payment and profile screens.
package viewmodel

import (
	"context"
	"fmt"

	"storefront-client/internal/client"
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"

	"go.uber.org/zap"
)

// TokenSource yields the bearer token of the signed-in user.
type TokenSource interface {
	Token() (string, error)
}

// OrderPayload is a single order, or the user's order history when Order is nil.
type OrderPayload struct {
	Order  *model.Order  `json:"order,omitempty"`
	Orders []model.Order `json:"orders,omitempty"`
}

type OrderFetchViewModel struct {
	store   client.StoreClient
	session TokenSource
	logger  *zap.Logger
	tracker *fetch.Tracker[OrderPayload]
}

func NewOrderFetchViewModel(store client.StoreClient, session TokenSource, logger *zap.Logger) *OrderFetchViewModel {
	return &OrderFetchViewModel{
		store:   store,
		session: session,
		logger:  logger,
		tracker: fetch.NewTracker[OrderPayload](),
	}
}

// Load fetches orderID, or the user's orders when orderID is empty. A newer Load
// cancels this one and its result is dropped.
func (vm *OrderFetchViewModel) Load(ctx context.Context, orderID string) fetch.State[OrderPayload] {
	st := vm.tracker.Run(ctx, func(ctx context.Context) (OrderPayload, error) {
		token, err := vm.session.Token()
		if err != nil {
			return OrderPayload{}, err
		}

		if orderID == "" {
			orders, err := vm.store.ListMyOrders(ctx, token)
			if err != nil {
				return OrderPayload{}, err
			}
			if orders == nil {
				orders = []model.Order{}
			}
			return OrderPayload{Orders: orders}, nil
		}

		order, err := vm.store.GetOrder(ctx, token, orderID)
		if err != nil {
			return OrderPayload{}, err
		}
		return OrderPayload{Order: order}, nil
	})

	if st.Status == fetch.Error {
		vm.logger.Warn("order fetch failed",
			zap.String("order_id", orderID),
			zap.String("kind", string(st.Kind)),
			zap.String("error", st.Message),
		)
	}
	return st
}

// Replace commits an order returned by the backend, superseding any load in flight.
func (vm *OrderFetchViewModel) Replace(order *model.Order) error {
	if order == nil {
		return fmt.Errorf("replace order: nil order")
	}
	vm.tracker.Set(OrderPayload{Order: order})
	return nil
}

func (vm *OrderFetchViewModel) State() fetch.State[OrderPayload] {
	return vm.tracker.State()
}

func (vm *OrderFetchViewModel) OnChange(fn func(fetch.State[OrderPayload])) {
	vm.tracker.OnChange(fn)
}

// Close cancels the request in flight when the screen goes away.
func (vm *OrderFetchViewModel) Close() {
	vm.tracker.Close()
}
