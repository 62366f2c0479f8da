package trading

import (
	"context"
	"math"

	"wheel-trader/internal/broker"
	"wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
)

// DefaultScanSymbols is the watchlist used by ScanSymbols when none is given.
var DefaultScanSymbols = []string{"AAPL", "AMD", "INTC", "F", "SOFI", "PLTR"}

// Login opens a brokerage session and records the attempt.
func (p *Pipeline) Login(ctx context.Context) (*models.Session, error) {
	if err := p.requireBroker(); err != nil {
		return nil, err
	}
	session, err := p.broker.Login(ctx)
	user := ""
	if session != nil {
		user = session.Username
	}
	_ = p.audit.LogLogin(ctx, user, err)
	if err != nil {
		return nil, err
	}
	logger := p.log(ctx)
	logger.Info().Time("expires_at", session.ExpiresAt).Msg("Session established")
	return session, nil
}

// PortfolioReport is the account's open positions and live orders.
type PortfolioReport struct {
	Positions []models.Position  `json:"positions"`
	Summary   *PositionSummary   `json:"summary"`
	Orders    []models.LiveOrder `json:"orders"`
}

// Positions returns open positions and live orders.
func (p *Pipeline) Positions(ctx context.Context) (*PortfolioReport, error) {
	if err := p.requireBroker(); err != nil {
		return nil, err
	}
	positions, err := p.broker.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := p.broker.GetOrders(ctx, broker.OrderStatusLive)
	if err != nil {
		return nil, err
	}
	return &PortfolioReport{
		Positions: positions,
		Summary:   SummarizePositions(positions, p.now()),
		Orders:    orders,
	}, nil
}

// StatusReport is an account overview. Each section fails independently.
type StatusReport struct {
	Balance      *models.Balance    `json:"balance,omitempty"`
	BalanceErr   error              `json:"-"`
	Positions    []models.Position  `json:"positions"`
	PositionsErr error              `json:"-"`
	Orders       []models.LiveOrder `json:"orders"`
	OrdersErr    error              `json:"-"`
}

// Status gathers balance, positions and live orders. A section that fails
// is reported on its own; a fatal error such as a rejected login aborts.
func (p *Pipeline) Status(ctx context.Context) (*StatusReport, error) {
	if err := p.requireBroker(); err != nil {
		return nil, err
	}
	report := &StatusReport{}

	report.Balance, report.BalanceErr = p.broker.GetBalance(ctx)
	if errors.IsFatal(report.BalanceErr) {
		return nil, report.BalanceErr
	}
	report.Positions, report.PositionsErr = p.broker.GetPositions(ctx)
	if errors.IsFatal(report.PositionsErr) {
		return nil, report.PositionsErr
	}
	report.Orders, report.OrdersErr = p.broker.GetOrders(ctx, broker.OrderStatusLive)
	if errors.IsFatal(report.OrdersErr) {
		return nil, report.OrdersErr
	}
	return report, nil
}

// SummaryReport is the full pipeline overview.
type SummaryReport struct {
	*CandidateReport
	Enriched     []EnrichResult   `json:"enriched"`
	Portfolio    *PortfolioReport `json:"portfolio,omitempty"`
	PortfolioErr error            `json:"-"`
}

// Summary screens the scan, enriches the top wheel.enrich_top candidates
// and attaches the account's positions.
func (p *Pipeline) Summary(ctx context.Context, scanPath string, limit int) (*SummaryReport, error) {
	cands, err := p.Candidates(ctx, scanPath, limit)
	if err != nil {
		return nil, err
	}
	report := &SummaryReport{CandidateReport: cands}

	top := cands.Candidates
	if len(top) > p.wheel.EnrichTop {
		top = top[:p.wheel.EnrichTop]
	}
	if len(top) > 0 {
		report.Enriched, err = p.Enrich(ctx, top)
		if err != nil {
			return nil, err
		}
	}

	report.Portfolio, report.PortfolioErr = p.Positions(ctx)
	if errors.IsFatal(report.PortfolioErr) {
		return nil, report.PortfolioErr
	}
	return report, nil
}

// SymbolScan is the direct-chain scan result of one symbol.
type SymbolScan struct {
	Symbol     string                   `json:"symbol"`
	Name       string                   `json:"name,omitempty"`
	Price      float64                  `json:"approx_price"`
	Candidates []models.OptionCandidate `json:"candidates"`
	Err        error                    `json:"-"`
}

// ScanReport is the result of ScanSymbols.
type ScanReport struct {
	CashCap    float64      `json:"cash_cap"`
	BalanceErr error        `json:"-"`
	Results    []SymbolScan `json:"results"`
}

// ScanSymbols looks for cash-secured puts directly from option chains,
// without a scan document. Symbols that are not active listed equities are
// reported without fetching a chain. The stock price is approximated by the middle
// strike of the nearest expiration, and cash is capped by the smaller of
// equity buying power and the budget.
func (p *Pipeline) ScanSymbols(ctx context.Context, symbols []string) (*ScanReport, error) {
	if err := p.requireBroker(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		symbols = DefaultScanSymbols
	}

	report := &ScanReport{CashCap: p.wheel.Budget}
	balance, err := p.broker.GetBalance(ctx)
	switch {
	case errors.IsFatal(err):
		return nil, err
	case err != nil:
		report.BalanceErr = err
		logger := p.log(ctx)
		logger.Warn().Err(err).Msg("Balance unavailable, using budget as cash cap")
	case balance != nil && balance.EquityBuyingPower.Float64() > 0:
		report.CashCap = math.Min(balance.EquityBuyingPower.Float64(), p.wheel.Budget)
	}

	for _, raw := range symbols {
		res := SymbolScan{Symbol: raw}
		symbol, err := p.normalize(ctx, raw)
		if err != nil {
			res.Err = err
			report.Results = append(report.Results, res)
			continue
		}
		res.Symbol = symbol

		equity, err := p.broker.GetEquity(ctx, symbol)
		if err != nil {
			if errors.IsFatal(err) {
				return nil, err
			}
			res.Err = errors.NewSymbolError(symbol, "instrument lookup", err)
			report.Results = append(report.Results, res)
			continue
		}
		if !equity.Active {
			res.Err = errors.NewDataError("instrument", symbol, "not an active listed equity", nil)
			report.Results = append(report.Results, res)
			continue
		}
		res.Name = equity.Description

		chain, err := p.chain(ctx, symbol)
		if err != nil {
			if errors.IsFatal(err) {
				return nil, err
			}
			res.Err = errors.NewSymbolError(symbol, "scan", err)
			logger := logging.WithSymbol(p.log(ctx), symbol)
			logger.Warn().Err(err).Msg("Option chain lookup failed")
			report.Results = append(report.Results, res)
			continue
		}

		mid, ok := options.MiddleStrike(chain)
		if !ok {
			res.Err = errors.NewDataError("chain", symbol, "no option chain data", nil)
			report.Results = append(report.Results, res)
			continue
		}
		res.Price = mid
		res.Candidates = p.finder.FindCSP(chain, mid, report.CashCap)
		report.Results = append(report.Results, res)
	}
	return report, nil
}
