package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/resilience"
	"wheel-trader/pkg/utils"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

type fakeBrokerage struct {
	t           *testing.T
	mu          sync.Mutex
	logins      int
	requests    []recordedRequest
	handlers    map[string]http.HandlerFunc
	rejectLogin bool
	expiration  string
}

func newFakeBrokerage(t *testing.T) (*fakeBrokerage, *httptest.Server) {
	f := &fakeBrokerage{
		t:          t,
		handlers:   make(map[string]http.HandlerFunc),
		expiration: time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBrokerage) handle(method, path string, h http.HandlerFunc) {
	f.handlers[method+" "+path] = h
}

func (f *fakeBrokerage) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.RequestURI(), Auth: r.Header.Get("Authorization"), Body: string(body)})
	f.mu.Unlock()

	if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
		f.mu.Lock()
		f.logins++
		n := f.logins
		f.mu.Unlock()
		if f.rejectLogin {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error": {"code": "invalid_credentials", "message": "Invalid login, please check your username and password"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"session-token":      "token-" + string(rune('0'+n)),
				"session-expiration": f.expiration,
				"user":               map[string]string{"username": "wheeler"},
			},
		})
		return
	}

	h, ok := f.handlers[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"code": "not_found", "message": "Not found"}}`)
		return
	}
	h(w, r)
}

func (f *fakeBrokerage) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && strings.HasPrefix(r.Path, path) {
			n++
		}
	}
	return n
}

func (f *fakeBrokerage) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeData(w http.ResponseWriter, data string) {
	_, _ = io.WriteString(w, `{"data": `+data+`}`)
}

func newTestBroker(srv *httptest.Server) *Tastytrade {
	return NewTastytrade(TastytradeConfig{
		ClientConfig: ClientConfig{
			BaseURL:  srv.URL,
			Username: "wheeler",
			Password: "hunter2",
			Retry: utils.RetryConfig{
				MaxAttempts:   3,
				InitialDelay:  time.Millisecond,
				MaxDelay:      time.Millisecond,
				BackoffFactor: 1,
			},
		},
		AccountNumber: "5WW00001",
	}, zerolog.Nop())
}

func TestSessionReusedWithinValidity(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/accounts/5WW00001/balances", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"cash-balance": "5000.00", "equity-buying-power": 4800, "net-liquidating-value": "5100.5"}`)
	})

	b := newTestBroker(srv)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		bal, err := b.GetBalance(ctx)
		if err != nil {
			t.Fatalf("GetBalance: %v", err)
		}
		if bal.CashBalance != 5000 || bal.EquityBuyingPower != 4800 || bal.NetLiquidatingValue != 5100.5 {
			t.Errorf("unexpected balance: %+v", bal)
		}
	}

	if fake.logins != 1 {
		t.Errorf("logins = %d, want 1", fake.logins)
	}
	if got := fake.last().Auth; got != "token-1" {
		t.Errorf("Authorization = %q, want raw token", got)
	}
}

func TestSessionRefreshedAfterExpiry(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/instruments/equities/F", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"symbol": "F", "description": "Ford Motor"}`)
	})

	b := newTestBroker(srv)
	now := time.Now()
	b.Client().Sessions().SetClock(func() time.Time { return now })

	if _, err := b.GetEquity(context.Background(), "f"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := b.GetEquity(context.Background(), "F"); err != nil {
		t.Fatal(err)
	}

	if fake.logins != 2 {
		t.Errorf("logins = %d, want 2", fake.logins)
	}
	if got := fake.last().Auth; got != "token-2" {
		t.Errorf("Authorization = %q, want token-2", got)
	}
}

func TestSessionFallbackExpiry(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.expiration = ""

	b := newTestBroker(srv)
	start := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	b.Client().Sessions().SetClock(func() time.Time { return start })

	s, err := b.Login(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !s.ExpiresAt.Equal(start.Add(DefaultSessionTimeout)) {
		t.Errorf("ExpiresAt = %v", s.ExpiresAt)
	}
	if s.Username != "wheeler" {
		t.Errorf("Username = %q", s.Username)
	}
}

func TestLoginRejected(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.rejectLogin = true

	b := newTestBroker(srv)
	_, err := b.GetPositions(context.Background())

	var authErr *errors.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("login failure must be fatal")
	}
	if !strings.Contains(err.Error(), "Invalid login") {
		t.Errorf("brokerage message missing: %v", err)
	}
	if fake.logins != 1 {
		t.Errorf("login retried: %d attempts", fake.logins)
	}
	if fake.count(http.MethodGet, "/accounts") != 0 {
		t.Error("request issued without a session")
	}
}

func TestMissingCredentials(t *testing.T) {
	_, srv := newFakeBrokerage(t)
	b := NewTastytrade(TastytradeConfig{ClientConfig: ClientConfig{BaseURL: srv.URL}, AccountNumber: "X"}, zerolog.Nop())

	_, err := b.GetOptionChain(context.Background(), "F")
	if !errors.Is(err, errors.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/option-chains/ZZZZ/nested", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"code": "record_not_found", "message": "Symbol not found"}}`)
	})

	_, err := newTestBroker(srv).GetOptionChain(context.Background(), "ZZZZ")

	var apiErr *errors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Path != "/option-chains/ZZZZ/nested" || apiErr.Message != "Symbol not found" || apiErr.Code != "record_not_found" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if fake.count(http.MethodGet, "/option-chains") != 1 {
		t.Error("404 must not be retried")
	}
}

func TestGetRetriedOnServerError(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	calls := 0
	fake.handle(http.MethodGet, "/accounts/5WW00001/positions", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeData(w, `{"items": [{"symbol": "F     260320P00012000", "underlying-symbol": "F", "instrument-type": "Equity Option", "quantity": 1, "quantity-direction": "Short"}]}`)
	})

	positions, err := newTestBroker(srv).GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(positions) != 1 || !positions[0].IsShort() || positions[0].Quantity != 1 {
		t.Errorf("unexpected positions: %+v", positions)
	}
}

func TestPostNeverRetried(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodPost, "/accounts/5WW00001/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error": {"message": "try later"}}`)
	})

	order := &models.Order{Legs: []models.OrderLeg{{Symbol: "F     260320P00012000", Quantity: 1}}}
	_, err := newTestBroker(srv).SubmitOrder(context.Background(), order)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := fake.count(http.MethodPost, "/accounts/5WW00001/orders"); n != 1 {
		t.Errorf("submit attempts = %d, want 1", n)
	}
}

func TestDryRunOrder(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodPost, "/accounts/5WW00001/orders/dry-run", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{
			"order": {"id": 0, "status": "Received", "order-type": "Limit", "price": "0.45", "price-effect": "Credit", "underlying-symbol": "F"},
			"warnings": [{"code": "tif_next_valid_session", "message": "Order will be placed next session"}],
			"buying-power-effect": {"change-in-buying-power": "1155.0", "change-in-buying-power-effect": "Debit"},
			"fee-calculation": {"total-fees": "1.14", "total-fees-effect": "Debit"}
		}`)
	})

	order := &models.Order{
		TimeInForce: "Day",
		OrderType:   "Limit",
		Price:       "0.45",
		PriceEffect: models.PriceEffectCredit,
		Legs:        []models.OrderLeg{{InstrumentType: models.InstrumentEquityOption, Symbol: "F     260320P00012000", Quantity: 1, Action: models.ActionSellToOpen}},
	}
	res, err := newTestBroker(srv).DryRunOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("DryRunOrder: %v", err)
	}
	if res.Order.Status != "Received" || len(res.Warnings) != 1 || res.FeeCalculation.TotalFees != 1.14 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Raw) == 0 {
		t.Error("raw payload not kept")
	}

	var sent models.Order
	if err := json.Unmarshal([]byte(fake.last().Body), &sent); err != nil {
		t.Fatalf("decode sent order: %v", err)
	}
	if sent.Legs[0].Action != models.ActionSellToOpen || sent.Price != "0.45" {
		t.Errorf("unexpected order body: %s", fake.last().Body)
	}
}

func TestGetOrdersAndCancel(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/accounts/5WW00001/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "Live" {
			t.Errorf("status query = %q", r.URL.RawQuery)
		}
		writeData(w, `{"items": [{"id": 12345, "status": "Live", "order-type": "Limit", "price": "0.10", "price-effect": "Debit",
			"legs": [{"symbol": "F     260320P00012000", "action": "Buy to Close", "quantity": 1}]}]}`)
	})
	fake.handle(http.MethodDelete, "/accounts/5WW00001/orders/12345", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, `{"id": 12345, "status": "Cancel Requested"}`)
	})

	b := newTestBroker(srv)
	orders, err := b.GetOrders(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].ID != "12345" || orders[0].Legs[0].Action != models.ActionBuyToClose {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	if err := b.CancelOrder(context.Background(), string(orders[0].ID)); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if err := b.CancelOrder(context.Background(), " "); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/accounts/5WW00001/balances", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"code": "token_invalid", "message": "Token has expired"}}`)
	})

	b := newTestBroker(srv)
	if _, err := b.GetBalance(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if b.Client().Sessions().IsAuthenticated() {
		t.Error("401 should drop the cached session")
	}
}

func TestBaseURLFor(t *testing.T) {
	if BaseURLFor(true) != SandboxBaseURL || BaseURLFor(false) != ProductionBaseURL {
		t.Error("unexpected base URLs")
	}
	b := NewTastytrade(TastytradeConfig{Sandbox: true}, zerolog.Nop())
	if b.Client().BaseURL() != SandboxBaseURL {
		t.Errorf("BaseURL = %q", b.Client().BaseURL())
	}
}

func TestCircuitOpensAfterRepeatedServerErrors(t *testing.T) {
	fake, srv := newFakeBrokerage(t)
	fake.handle(http.MethodGet, "/option-chains/F/nested", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	b := NewTastytrade(TastytradeConfig{
		ClientConfig: ClientConfig{
			BaseURL:        srv.URL,
			Username:       "wheeler",
			Password:       "hunter2",
			Retry:          utils.RetryConfig{MaxAttempts: 1},
			CircuitBreaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour},
		},
	}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := b.GetOptionChain(context.Background(), "F"); err == nil {
			t.Fatal("expected server error")
		}
	}
	_, err := b.GetOptionChain(context.Background(), "F")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if n := fake.count(http.MethodGet, "/option-chains/F/nested"); n != 2 {
		t.Errorf("chain requests = %d, want 2", n)
	}
}

func TestCircuitIgnoresClientErrors(t *testing.T) {
	_, srv := newFakeBrokerage(t)
	b := NewTastytrade(TastytradeConfig{
		ClientConfig: ClientConfig{
			BaseURL:        srv.URL,
			Username:       "wheeler",
			Password:       "hunter2",
			CircuitBreaker: resilience.CircuitBreakerConfig{FailureThreshold: 1},
		},
	}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := b.GetOptionChain(context.Background(), "ZZZZ")
		if errors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatalf("a 404 opened the circuit on call %d", i+1)
		}
	}
	if state := b.Client().Circuit().State(); state != resilience.CircuitClosed {
		t.Errorf("state = %s", state)
	}
}

func TestLoginNeverLogsCredentials(t *testing.T) {
	const password = "Sup3rSecretPassw0rd"
	const token = "tok-Live-8c41f2d9e7"

	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sessions":
			logins++
			if logins == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error": {"code": "invalid_credentials", "message": "password=`+password+` rejected"}}`)
				return
			}
			writeData(w, `{"session-token": "`+token+`", "user": {"username": "wheeler"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": {"message": "session `+token+` has no account"}}`)
		}
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	b := NewTastytrade(TastytradeConfig{
		ClientConfig: ClientConfig{BaseURL: srv.URL, Username: "wheeler", Password: password},
		AccountNumber: "5WW00001",
	}, logger)
	ctx := context.Background()

	_, err := b.Login(ctx)
	if err == nil {
		t.Fatal("expected rejected login")
	}
	if strings.Contains(err.Error(), password) {
		t.Errorf("password in returned error: %v", err)
	}

	if _, err := b.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := b.GetBalance(ctx); err == nil {
		t.Fatal("expected API error")
	}

	out := buf.String()
	if strings.Contains(out, password) || strings.Contains(out, "Sup3") {
		t.Errorf("password fragment logged: %s", out)
	}
	if strings.Contains(out, token) {
		t.Errorf("session token logged: %s", out)
	}
	if !strings.Contains(out, "wheeler") {
		t.Errorf("login user not logged: %s", out)
	}
}
