package trading

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wheel-trader/internal/config"
	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
)

var (
	testNow    = time.Date(2026, 2, 20, 15, 0, 0, 0, time.UTC)
	testExpiry = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
)

// fakeBroker is an in-memory broker.Broker that records every call.
type fakeBroker struct {
	mu sync.Mutex

	chains     map[string]*models.ChainResponse
	chainErrs  map[string]error
	equities   map[string]*models.Equity
	balance    *models.Balance
	balanceErr error
	positions  []models.Position
	orders     []models.LiveOrder
	loginErr   error
	submitErr  error

	calls     []string
	submitted []*models.Order
	dryRuns   []*models.Order
	cancelled []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		chains:    make(map[string]*models.ChainResponse),
		chainErrs: make(map[string]error),
		equities:  make(map[string]*models.Equity),
	}
}

func (f *fakeBroker) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBroker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBroker) Login(ctx context.Context) (*models.Session, error) {
	f.record("login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.Session{Token: "tok", Username: "tester", ExpiresAt: testNow.Add(24 * time.Hour)}, nil
}

func (f *fakeBroker) GetBalance(ctx context.Context) (*models.Balance, error) {
	f.record("balance")
	return f.balance, f.balanceErr
}

func (f *fakeBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	f.record("positions")
	return f.positions, nil
}

func (f *fakeBroker) GetOrders(ctx context.Context, status string) ([]models.LiveOrder, error) {
	f.record("orders:" + status)
	return f.orders, nil
}

func (f *fakeBroker) GetOptionChain(ctx context.Context, symbol string) (*models.ChainResponse, error) {
	f.record("chain:" + symbol)
	if err := f.chainErrs[symbol]; err != nil {
		return nil, err
	}
	if c, ok := f.chains[symbol]; ok {
		return c, nil
	}
	return nil, errors.NewAPIError("GET", "/option-chains/"+symbol+"/nested", 404, "not_found", "Symbol not found")
}

func (f *fakeBroker) GetEquity(ctx context.Context, symbol string) (*models.Equity, error) {
	f.record("equity:" + symbol)
	if e, ok := f.equities[symbol]; ok {
		return e, nil
	}
	return &models.Equity{Symbol: symbol, Description: symbol + " Inc", Active: true}, nil
}

func (f *fakeBroker) DryRunOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	f.record("dry-run")
	f.mu.Lock()
	f.dryRuns = append(f.dryRuns, order)
	f.mu.Unlock()
	return &models.OrderResult{Order: models.LiveOrder{Status: "Received"}}, nil
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	f.record("submit")
	f.mu.Lock()
	f.submitted = append(f.submitted, order)
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.OrderResult{Order: models.LiveOrder{ID: "12345", Status: "Routed"}}, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	f.record("cancel:" + orderID)
	f.mu.Lock()
	f.cancelled = append(f.cancelled, orderID)
	f.mu.Unlock()
	return nil
}

// chainFixture builds a single-expiration chain for underlying with both
// legs present at each strike.
func chainFixture(underlying string, dte int, strikes ...float64) *models.ChainResponse {
	rows := make([]models.ChainStrike, 0, len(strikes))
	for _, s := range strikes {
		rows = append(rows, models.ChainStrike{
			StrikePrice: json.RawMessage(strconv.Quote(strconv.FormatFloat(s, 'f', 1, 64))),
			Put:         models.LegRef(options.EncodeSymbol(underlying, testExpiry, models.OptionPut, s)),
			Call:        models.LegRef(options.EncodeSymbol(underlying, testExpiry, models.OptionCall, s)),
		})
	}
	return &models.ChainResponse{Items: []models.NestedChain{{
		UnderlyingSymbol: underlying,
		Expirations: []models.ChainExpiration{{
			ExpirationDate:   testExpiry.Format(models.DateLayout),
			DaysToExpiration: &dte,
			Strikes:          rows,
		}},
	}}}
}

// memScans is an in-memory store.ScanSource.
type memScans struct {
	doc  *models.ScanDocument
	path string
	err  error
}

func (m *memScans) Latest(ctx context.Context) (*models.ScanDocument, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if m.doc == nil {
		return nil, "", errors.NewScanError("scans", errors.ErrScanNotFound)
	}
	return m.doc, m.path, nil
}

func (m *memScans) Load(ctx context.Context, path string) (*models.ScanDocument, error) {
	doc, _, err := m.Latest(ctx)
	return doc, err
}

// strongStock scores 120: every signal at its top tier.
func strongStock(ticker string, price float64) models.StockCandidate {
	return models.StockCandidate{
		Ticker:       ticker,
		Price:        models.FlexFloat(price),
		RSI:          25,
		Upside:       60,
		Rating:       "strong_buy",
		PctFromATH:   -55,
		Streak:       -3,
		AIAssessment: "BUY - oversold quality name",
		VolSurge:     2.5,
	}
}

func newTestPipeline(t *testing.T, b *fakeBroker, scans *memScans, mutate func(*config.Config)) *Pipeline {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if scans == nil {
		scans = &memScans{}
	}
	p := NewPipeline(cfg, b, scans, zerolog.Nop())
	p.SetClock(func() time.Time { return testNow })
	return p
}

func strikesOf(c []models.OptionCandidate) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = c[i].Strike
	}
	return out
}
