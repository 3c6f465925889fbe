package viewmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"storefront-client/internal/client"
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"
	"storefront-client/internal/widget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingPaypal stands in for the PayPal REST API behind the real checkout widget.
type countingPaypal struct {
	mu       sync.Mutex
	created  int
	captured []string
}

func (p *countingPaypal) CreateOrder(_ context.Context, req *client.CreateOrderRequest) (*client.CreateOrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	id := fmt.Sprintf("PP-%d", p.created)
	return &client.CreateOrderResponse{OrderID: id, ApproveURL: "https://paypal.test/approve/" + id}, nil
}

func (p *countingPaypal) CaptureOrder(_ context.Context, orderID string) (*client.CaptureOrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, orderID)
	return &client.CaptureOrderResponse{
		Result: model.PaypalCaptureResult{ID: orderID, Status: "COMPLETED"},
		Raw:    json.RawMessage(`{"id":"` + orderID + `","status":"COMPLETED"}`),
	}, nil
}

func newCheckoutFixture(t *testing.T) (*paymentFixture, *countingPaypal) {
	t.Helper()
	pp := &countingPaypal{}
	f := &paymentFixture{
		store:   &fakeStore{orders: map[string]*model.Order{"A1": unpaidOrder("A1")}, clientID: "sb-client"},
		journal: &fakeJournal{},
	}
	session := signedIn()
	f.orders = NewOrderFetchViewModel(f.store, session, zap.NewNop())
	f.vm = NewPaymentCaptureViewModel(PaymentDeps{
		Store:   f.store,
		Session: session,
		Widget: widget.NewPaypalCheckout(func(string) client.PaypalClient {
			return pp
		}, "http://localhost:8080", zap.NewNop()),
		Journal: f.journal,
		Sink:    f.orders,
		Logger:  zap.NewNop(),
	})

	st := f.orders.Load(context.Background(), "A1")
	require.Equal(t, fetch.Success, st.Status)
	require.NoError(t, f.vm.OrderLoaded(context.Background(), st.Value.Order))
	return f, pp
}

func TestPaypalCheckout_SecondBeginChargesOnce(t *testing.T) {
	f, pp := newCheckoutFixture(t)
	ctx := context.Background()

	first, err := f.vm.Begin(ctx)
	require.NoError(t, err)
	second, err := f.vm.Begin(ctx)
	require.NoError(t, err)

	// the replaced PayPal order can no longer be captured
	assert.ErrorIs(t, f.vm.Approve(ctx, first.ProviderOrderID), widget.ErrUnknownReference)
	assert.Empty(t, pp.captured)
	assert.Equal(t, Authorizing, f.vm.State().Phase)

	require.NoError(t, f.vm.Approve(ctx, second.ProviderOrderID))
	assert.Equal(t, []string{second.ProviderOrderID}, pp.captured)
	assert.Equal(t, 1, f.store.payCount())
	assert.Equal(t, Paid, f.vm.State().Phase)
	assert.Empty(t, f.journal.recs)

	// nothing is left to approve once paid
	assert.ErrorIs(t, f.vm.Approve(ctx, second.ProviderOrderID), widget.ErrUnknownReference)
	assert.Len(t, pp.captured, 1)
}

func TestPaypalCheckout_StaleCancelKeepsAuthorization(t *testing.T) {
	f, pp := newCheckoutFixture(t)
	ctx := context.Background()

	first, err := f.vm.Begin(ctx)
	require.NoError(t, err)
	second, err := f.vm.Begin(ctx)
	require.NoError(t, err)

	f.vm.Cancel(ctx, first.ProviderOrderID, widget.ErrCancelled)
	assert.Equal(t, Authorizing, f.vm.State().Phase)

	f.vm.Cancel(ctx, second.ProviderOrderID, widget.ErrCancelled)
	st := f.vm.State()
	assert.Equal(t, ReadyToPay, st.Phase)
	assert.Equal(t, FailureAuthorization, st.Failure)
	assert.Empty(t, pp.captured)
	assert.Zero(t, f.store.payCount())
}
