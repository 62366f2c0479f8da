package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wheel-trader/internal/analysis/scoring"
	"wheel-trader/internal/broker"
	"wheel-trader/internal/config"
	"wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
	"wheel-trader/internal/security"
	"wheel-trader/internal/store"
)

// Pipeline runs the wheel workflow: scan document to ranked candidates,
// candidates to option contracts, contracts to orders.
type Pipeline struct {
	broker    broker.Broker
	scans     store.ScanSource
	screener  *scoring.Screener
	finder    *options.Finder
	wheel     config.WheelConfig
	access    *security.AccessController
	audit     *security.AuditLogger
	validator *security.InputValidator
	checker   *ExecutionChecker
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline from configuration. b may be nil for
// commands that only read scan documents.
func NewPipeline(cfg *config.Config, b broker.Broker, scans store.ScanSource, logger zerolog.Logger) *Pipeline {
	validator := security.NewInputValidator(cfg.Security.StrictValidation)
	return &Pipeline{
		broker:    b,
		scans:     scans,
		screener:  scoring.NewScreener(cfg.Criteria()),
		finder:    options.NewFinder(cfg.Wheel.MinDTE, cfg.Wheel.MaxDTE, options.DefaultLimit),
		wheel:     cfg.Wheel,
		validator: validator,
		checker:   NewExecutionChecker(nil, validator, cfg.Wheel.MaxContracts),
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// SetSecurity attaches the read-only gate and audit trail.
func (p *Pipeline) SetSecurity(access *security.AccessController, audit *security.AuditLogger) {
	p.access = access
	p.audit = audit
	p.checker = NewExecutionChecker(access, p.validator, p.wheel.MaxContracts)
}

// SetClock replaces the clock used to compute days to expiration.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Wheel returns the wheel parameters the pipeline runs with.
func (p *Pipeline) Wheel() config.WheelConfig {
	return p.wheel
}

// Screener returns the pipeline's screener.
func (p *Pipeline) Screener() *scoring.Screener {
	return p.screener
}

func (p *Pipeline) requireBroker() error {
	if p.broker == nil {
		return errors.ErrNotAuthenticated
	}
	return nil
}

// CandidateReport is the result of screening a scan document.
type CandidateReport struct {
	ScanPath   string
	Scan       *models.ScanDocument
	Passed     int
	Candidates []models.StockCandidate
}

// LoadScan reads the scan document at path, or the newest one when path is
// empty.
func (p *Pipeline) LoadScan(ctx context.Context, path string) (*models.ScanDocument, string, error) {
	if path != "" {
		doc, err := p.scans.Load(ctx, path)
		return doc, path, err
	}
	return p.scans.Latest(ctx)
}

// Candidates screens a scan document and returns the top limit stocks.
// limit <= 0 uses the configured candidate limit.
func (p *Pipeline) Candidates(ctx context.Context, scanPath string, limit int) (*CandidateReport, error) {
	doc, path, err := p.LoadScan(ctx, scanPath)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = p.wheel.CandidateLimit
	}

	all := p.screener.Screen(doc, 0)
	top := all
	if len(top) > limit {
		top = top[:limit]
	}

	logger := p.log(ctx)
	logger.Debug().
		Str("scan", path).
		Int("passed", len(all)).
		Int("returned", len(top)).
		Msg("Screened scan document")

	return &CandidateReport{ScanPath: path, Scan: doc, Passed: len(all), Candidates: top}, nil
}

// ResolvePrice returns the reference price for ticker: explicit when
// positive, otherwise the price recorded in the scan document.
func (p *Pipeline) ResolvePrice(ctx context.Context, ticker string, explicit float64, scanPath string) (float64, error) {
	if explicit > 0 {
		return explicit, nil
	}

	doc, _, err := p.LoadScan(ctx, scanPath)
	if err != nil {
		if errors.Is(err, errors.ErrScanNotFound) {
			return 0, errors.NewDataError("price", ticker, "no scan document available; pass --price", nil)
		}
		return 0, err
	}

	if stock, ok := findStock(doc, p.screener, ticker); ok && stock.Price.Float64() > 0 {
		return stock.Price.Float64(), nil
	}
	return 0, errors.NewDataError("price", ticker, "ticker not in scan data; pass --price", nil)
}

// findStock looks the ticker up in the screened categories first, then in
// every other category of the document.
func findStock(doc *models.ScanDocument, screener *scoring.Screener, ticker string) (models.StockCandidate, bool) {
	for _, s := range screener.Merge(doc) {
		if strings.EqualFold(s.Ticker, ticker) {
			return s, true
		}
	}
	for _, name := range doc.CategoryNames() {
		for _, s := range doc.Category(name) {
			if strings.EqualFold(s.Ticker, ticker) {
				return s, true
			}
		}
	}
	return models.StockCandidate{}, false
}

// chain fetches and normalizes the option chain of symbol.
func (p *Pipeline) chain(ctx context.Context, symbol string) (models.Chain, error) {
	if err := p.requireBroker(); err != nil {
		return models.Chain{}, err
	}
	resp, err := p.broker.GetOptionChain(ctx, symbol)
	if err != nil {
		return models.Chain{}, err
	}
	return options.NewChain(symbol, resp, p.now()), nil
}

func (p *Pipeline) normalize(ctx context.Context, symbol string) (string, error) {
	normalized, err := p.validator.NormalizeSymbol(symbol)
	if err != nil {
		p.auditValidation(ctx, err)
		return "", err
	}
	return normalized, nil
}

func (p *Pipeline) auditValidation(ctx context.Context, err error) {
	var vErr *errors.ValidationError
	if errors.As(err, &vErr) {
		_ = p.audit.LogInputValidation(ctx, vErr.Field, fmt.Sprint(vErr.Value), vErr.Message)
	}
}

func (p *Pipeline) log(ctx context.Context) zerolog.Logger {
	if id := logging.RequestID(ctx); id != "" {
		return p.logger.With().Str("request_id", id).Logger()
	}
	return p.logger
}
