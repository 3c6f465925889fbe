package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"storefront-client/internal/client"
	"storefront-client/internal/config"
	"storefront-client/internal/repository"
	"storefront-client/internal/service"
	"storefront-client/internal/session"
	"storefront-client/internal/viewmodel"
	"storefront-client/internal/widget"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, backend http.HandlerFunc) *Server {
	t.Helper()

	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	db, err := client.InitStoreDB(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	logger := zap.NewNop()
	store := client.NewStoreClient(&config.Backend{URL: api.URL})
	sess := session.NewContext(repository.NewSessionRepository(db), "userInfo", logger)
	journal := repository.NewReconciliationRepository(db)

	newWidget := func() widget.Widget {
		return widget.NewPaypalCheckout(func(clientID string) client.PaypalClient {
			return client.NewPaypalClient(&config.Paypal{BaseApiURL: api.URL}, clientID)
		}, "http://localhost:8080", logger)
	}

	orders := service.NewOrderService(store, sess, journal, newWidget, "paypal", "GBP", logger)
	users := service.NewUserService(sess, viewmodel.NewProfileUpdateViewModel(store, sess, false, logger))
	return NewServer(sess, users, orders, logger)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := do(s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ScreensRequireSession(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call %s", r.URL.Path)
	})

	for _, path := range []string{"/api/screens/orders", "/api/screens/orders/A1", "/api/reconciliations"} {
		rec := do(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"kind":"auth"`, path)
	}
}

func TestServer_SignInThenHistory(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/mine", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"_id":"A1","totalPrice":42.5,"isPaid":false}]`))
	})

	rec := do(s, http.MethodPost, "/api/session", `{"_id":"u1","name":"Ada","email":"ada@example.com","token":"tok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tok\"")

	rec = do(s, http.MethodGet, "/api/screens/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st struct {
		Status string `json:"status"`
		Value  struct {
			Orders []struct {
				ID string `json:"_id"`
			} `json:"orders"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "success", st.Status)
	require.Len(t, st.Value.Orders, 1)
	assert.Equal(t, "A1", st.Value.Orders[0].ID)

	rec = do(s, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, http.MethodGet, "/api/screens/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ExpiredTokenReportsAuth(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid Token"}`))
	})

	rec := do(s, http.MethodPost, "/api/session", `{"_id":"u1","name":"Ada","token":"expired"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/screens/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errorKind":"auth"`)
	assert.Contains(t, rec.Body.String(), "Invalid Token")
}

func TestServer_ProfileValidation(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call %s", r.URL.Path)
	})

	rec := do(s, http.MethodPost, "/api/session", `{"_id":"u1","name":"Ada","token":"tok"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPut, "/api/screens/profile", `{"name":"","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Name is required")
}

// storefrontAPI serves both the storefront backend and the PayPal REST API.
type storefrontAPI struct {
	mu       sync.Mutex
	paid     bool
	created  int
	captured []string
	puts     int
}

func (a *storefrontAPI) handler(t *testing.T) http.HandlerFunc {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders/A1", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.paid {
			w.Write([]byte(`{"_id":"A1","totalPrice":42.5,"isPaid":true,"paidAt":"2026-10-01T12:00:00Z"}`))
			return
		}
		w.Write([]byte(`{"_id":"A1","totalPrice":42.5,"isPaid":false}`))
	})
	mux.HandleFunc("/api/orders/A1/pay", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.puts++
		a.paid = true
		w.Write([]byte(`{"_id":"A1","totalPrice":42.5,"isPaid":true,"paidAt":"2026-10-01T12:00:00Z"}`))
	})
	mux.HandleFunc("/api/keys/paypal", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sb-client"))
	})
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"pp-token"}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.created++
		id := fmt.Sprintf("PP-%d", a.created)
		fmt.Fprintf(w, `{"id":%q,"status":"CREATED","links":[{"rel":"approve","href":"https://paypal.test/approve/%s"}]}`, id, id)
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/checkout/orders/"), "/capture")
		a.mu.Lock()
		defer a.mu.Unlock()
		a.captured = append(a.captured, id)
		fmt.Fprintf(w, `{"id":%q,"status":"COMPLETED","payer":{"payer_id":"P1"},"purchase_units":[{"reference_id":"A1","payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","amount":{"currency_code":"GBP","value":"42.50"}}]}}]}`, id)
	})
	return mux.ServeHTTP
}

func signIn(t *testing.T, s *Server) {
	t.Helper()
	rec := do(s, http.MethodPost, "/api/session", `{"_id":"u1","name":"Ada","token":"tok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CheckoutThenPaypalReturn(t *testing.T) {
	api := &storefrontAPI{}
	s := newTestServer(t, api.handler(t))
	signIn(t, s)

	rec := do(s, http.MethodPost, "/api/screens/orders/A1/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"order_id":"A1","provider_order_id":"PP-1","order_approval_url":"https://paypal.test/approve/PP-1"}`, rec.Body.String())

	rec = do(s, http.MethodGet, "/api/paypal/success?order=A1&token=PP-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Payment approved")
	assert.Contains(t, rec.Body.String(), "Paid at 2026-10-01 12:00")

	// PayPal may redirect twice; the second return must not pay again
	rec = do(s, http.MethodGet, "/api/paypal/success?order=A1&token=PP-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment not completed")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.puts)
	assert.Equal(t, []string{"PP-1"}, api.captured)
}

func TestServer_ReplacedCheckoutIsNotCaptured(t *testing.T) {
	api := &storefrontAPI{}
	s := newTestServer(t, api.handler(t))
	signIn(t, s)

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/screens/orders/A1/checkout", "").Code)
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/screens/orders/A1/checkout", "").Code)

	rec := do(s, http.MethodGet, "/api/paypal/success?order=A1&token=PP-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodGet, "/api/paypal/success?order=A1&token=PP-2", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.puts)
	assert.Equal(t, []string{"PP-2"}, api.captured)
}

func TestServer_PaypalCancel(t *testing.T) {
	api := &storefrontAPI{}
	s := newTestServer(t, api.handler(t))
	signIn(t, s)

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/screens/orders/A1/checkout", "").Code)

	rec := do(s, http.MethodGet, "/api/paypal/cancel?order=A1&token=PP-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have not been charged.")

	rec = do(s, http.MethodGet, "/api/screens/orders/A1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var screen struct {
		Payment struct {
			Phase string `json:"phase"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &screen))
	assert.Equal(t, "ready_to_pay", screen.Payment.Phase)

	rec = do(s, http.MethodGet, "/api/paypal/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PaypalReturnRequiresParams(t *testing.T) {
	s := newTestServer(t, (&storefrontAPI{}).handler(t))
	signIn(t, s)

	rec := do(s, http.MethodGet, "/api/paypal/success?order=A1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_BraintreeRejectedForPaypalStorefront(t *testing.T) {
	api := &storefrontAPI{}
	s := newTestServer(t, api.handler(t))
	signIn(t, s)

	rec := do(s, http.MethodPost, "/api/screens/orders/A1/braintree", `{"nonce":"fake-valid-nonce"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not take Braintree payments")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.puts)
}
