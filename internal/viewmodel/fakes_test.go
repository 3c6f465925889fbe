package viewmodel

import (
	"context"
	"encoding/json"
	"sync"

	"storefront-client/internal/apperr"
	"storefront-client/internal/model"
	"storefront-client/internal/widget"
)

type fakeStore struct {
	mu sync.Mutex

	orders     map[string]*model.Order
	listErr    error
	getErr     error
	payErr     error
	payResult  *model.Order
	payEntered chan struct{}
	payRelease chan struct{}
	clientID   string
	profile    *model.Session
	profileErr error

	payCalls     []json.RawMessage
	listCalls    int
	profileCalls []model.ProfileUpdate
}

func (f *fakeStore) ListMyOrders(ctx context.Context, token string) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, token, orderID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.New(apperr.KindServer, "Order Not Found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) PayOrder(ctx context.Context, token, orderID string, receipt json.RawMessage) (*model.Order, error) {
	f.mu.Lock()
	f.payCalls = append(f.payCalls, receipt)
	entered, release := f.payEntered, f.payRelease
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payErr != nil {
		return nil, f.payErr
	}
	if f.payResult != nil {
		return f.payResult, nil
	}
	o := *f.orders[orderID]
	o.IsPaid = true
	now := paidAt
	o.PaidAt = &now
	return &o, nil
}

func (f *fakeStore) GetPaypalClientID(ctx context.Context, token string) (string, error) {
	return f.clientID, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, token string, update model.ProfileUpdate) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls = append(f.profileCalls, update)
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeStore) payCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payCalls)
}

type fakeSession struct {
	mu      sync.Mutex
	current *model.Session
}

func (s *fakeSession) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", apperr.New(apperr.KindAuth, "Please sign in to continue")
	}
	return s.current.Token, nil
}

func (s *fakeSession) Replace(_ context.Context, next *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *next
	s.current = &cp
	return nil
}

func (s *fakeSession) get() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.current
	return &cp
}

// fakeWidget calls the callbacks directly, as the provider SDK would.
type fakeWidget struct {
	mu     sync.Mutex
	cfg    model.PaymentConfig
	cb     widget.Callbacks
	mounts int
	units  []widget.PurchaseUnit
}

func (w *fakeWidget) Mount(cfg model.PaymentConfig, cb widget.Callbacks) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
	w.cb = cb
	w.mounts++
	return nil
}

func (w *fakeWidget) Begin(ctx context.Context) (*widget.Authorization, error) {
	w.mu.Lock()
	cb := w.cb
	w.mu.Unlock()

	unit, err := cb.CreateOrder(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.units = append(w.units, unit)
	w.mu.Unlock()
	return &widget.Authorization{ProviderOrderID: "PP-" + unit.ReferenceID}, nil
}

func (w *fakeWidget) Approve(ctx context.Context, receiptID string) error {
	w.mu.Lock()
	cb := w.cb
	w.mu.Unlock()

	return cb.OnApprove(ctx, widget.Receipt{
		ID:      receiptID,
		Status:  "COMPLETED",
		Payload: json.RawMessage(`{"id":"` + receiptID + `","status":"COMPLETED"}`),
	})
}

func (w *fakeWidget) Cancel(_ context.Context, _ string, reason error) {
	w.mu.Lock()
	cb := w.cb
	w.mu.Unlock()
	if reason == nil {
		reason = widget.ErrCancelled
	}
	cb.OnError(reason)
}

type fakeJournal struct {
	mu   sync.Mutex
	recs []*model.Reconciliation
}

func (j *fakeJournal) Create(_ context.Context, rec *model.Reconciliation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *fakeJournal) ListPending(context.Context, int) ([]*model.Reconciliation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recs, nil
}

func (j *fakeJournal) MarkResolved(context.Context, string) error { return nil }
