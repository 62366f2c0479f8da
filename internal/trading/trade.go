package trading

import (
	"context"
	"strings"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
	"wheel-trader/internal/security"
)

// TradeRequest selects a cash-secured put for one ticker. Zero Price means
// "use the scan document"; zero Premium means "use wheel.min_premium"; zero
// Quantity means one contract.
type TradeRequest struct {
	Ticker   string
	Price    float64
	Premium  float64
	Quantity int
	ScanPath string
}

// TradePlan is the contract chosen for a ticker and the order that sells it.
type TradePlan struct {
	Ticker       string                   `json:"ticker"`
	Price        float64                  `json:"price"`
	Best         models.OptionCandidate   `json:"best"`
	Alternatives []models.OptionCandidate `json:"alternatives"`
	Order        *models.Order            `json:"order"`
	Premium      float64                  `json:"premium"`
	Breakeven    *float64                 `json:"breakeven,omitempty"`
}

// PlanCSP resolves the reference price, fetches the chain and builds the
// sell-to-open order for the best cash-secured put.
func (p *Pipeline) PlanCSP(ctx context.Context, req TradeRequest) (*TradePlan, error) {
	ticker, err := p.normalize(ctx, req.Ticker)
	if err != nil {
		return nil, err
	}
	price, err := p.ResolvePrice(ctx, ticker, req.Price, req.ScanPath)
	if err != nil {
		return nil, err
	}

	chain, err := p.chain(ctx, ticker)
	if err != nil {
		return nil, errors.NewSymbolError(ticker, "option chain", err)
	}
	csps := p.finder.FindCSP(chain, price, p.wheel.Budget)
	if len(csps) == 0 {
		return nil, errors.NewDataError("csp", ticker, "no cash-secured put within budget and DTE window", errors.ErrNoCandidates)
	}
	best := csps[0]

	premium := req.Premium
	if premium <= 0 {
		premium = p.wheel.MinPremium
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	order, err := BuildOpenOrder(models.OptionPut, ticker, best.ExpirationDate.Time, best.Strike, premium, qty)
	if err != nil {
		p.auditValidation(ctx, err)
		return nil, err
	}

	plan := &TradePlan{
		Ticker:       ticker,
		Price:        price,
		Best:         best,
		Alternatives: csps[:min(len(csps), MaxAlternatives)],
		Order:        order,
		Premium:      premium,
	}
	if req.Premium > 0 {
		be := Breakeven(best.Strike, req.Premium)
		plan.Breakeven = &be
	}

	logging.LogCandidate(p.log(ctx), ticker, best.OptionSymbol, best.Strike, best.DaysToExpiration)
	return plan, nil
}

// DryRunCSP plans the best cash-secured put and asks the brokerage to
// validate it without placing it.
func (p *Pipeline) DryRunCSP(ctx context.Context, req TradeRequest) (*TradePlan, *models.OrderResult, error) {
	plan, err := p.PlanCSP(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.DryRun(ctx, plan.Order)
	return plan, res, err
}

// DryRun validates an order with the brokerage.
func (p *Pipeline) DryRun(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	if err := p.gate(ctx, security.OpDryRun, order, true); err != nil {
		return nil, err
	}
	res, err := p.broker.DryRunOrder(ctx, order)
	_ = p.audit.LogOrder(ctx, security.AuditOrderDryRun, "", order, err)
	if err != nil {
		return nil, err
	}
	logger := p.log(ctx)
	logger.Info().
		Str("symbol", order.Legs[0].Symbol).
		Int("warnings", len(res.Warnings)).
		Msg("Dry-run accepted")
	return res, nil
}

// ExecuteCSP plans and submits the best cash-secured put. Without
// confirmation it returns ErrConfirmationRequired before any network call.
func (p *Pipeline) ExecuteCSP(ctx context.Context, req TradeRequest, confirmed bool) (*TradePlan, *models.OrderResult, error) {
	if err := p.gate(ctx, security.OpSubmitOrder, nil, confirmed); err != nil {
		return nil, nil, err
	}
	plan, err := p.PlanCSP(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.submit(ctx, security.OpSubmitOrder, plan.Order, confirmed)
	return plan, res, err
}

// CloseRequest describes a buy-to-close of a short option.
type CloseRequest struct {
	OptionSymbol string
	Price        float64
	Quantity     int
}

// Close builds and submits a buy-to-close order. The order is returned even
// when it is blocked so the caller can show what would have been sent.
func (p *Pipeline) Close(ctx context.Context, req CloseRequest, confirmed bool) (*models.Order, *models.OrderResult, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	order, err := BuildCloseOrder(strings.ToUpper(req.OptionSymbol), req.Price, qty)
	if err != nil {
		p.auditValidation(ctx, err)
		return nil, nil, err
	}
	res, err := p.submit(ctx, security.OpCloseOrder, order, confirmed)
	return order, res, err
}

// Cancel cancels a live order.
func (p *Pipeline) Cancel(ctx context.Context, orderID string, confirmed bool) error {
	orderID = strings.TrimSpace(orderID)
	if err := p.validator.ValidateOrderID(orderID); err != nil {
		p.auditValidation(ctx, err)
		return err
	}
	if err := p.gate(ctx, security.OpCancelOrder, nil, confirmed); err != nil {
		return err
	}

	err := p.broker.CancelOrder(ctx, orderID)
	_ = p.audit.LogOrderCancelled(ctx, orderID, err)
	if err != nil {
		return err
	}
	logger := logging.WithOrderID(p.log(ctx), orderID)
	logger.Info().Msg("Order cancelled")
	return nil
}

// submit sends a checked order and records the outcome.
func (p *Pipeline) submit(ctx context.Context, op security.OperationType, order *models.Order, confirmed bool) (*models.OrderResult, error) {
	if err := p.gate(ctx, op, order, confirmed); err != nil {
		return nil, err
	}

	res, err := p.broker.SubmitOrder(ctx, order)
	orderID := ""
	if res != nil {
		orderID = string(res.Order.ID)
	}
	_ = p.audit.LogOrder(ctx, security.AuditOrderSubmitted, orderID, order, err)
	if err != nil {
		logger := p.log(ctx)
		logger.Error().Err(err).Str("symbol", order.Legs[0].Symbol).Msg("Order rejected")
		return nil, err
	}

	logging.LogOrder(p.log(ctx), orderID, order.Legs[0].Symbol, string(order.Legs[0].Action), res.Order.Status)
	return res, nil
}

// gate runs the execution checks and returns the first failure.
func (p *Pipeline) gate(ctx context.Context, op security.OperationType, order *models.Order, confirmed bool) error {
	if err := p.requireBroker(); err != nil {
		return err
	}
	result := p.checker.CheckExecution(ctx, ExecutionRequest{Operation: op, Order: order, Confirmed: confirmed})
	if result.ShouldExecute {
		return nil
	}
	if errors.Is(result.Err, errors.ErrInputValidation) {
		p.auditValidation(ctx, result.Err)
	}
	logger := p.log(ctx)
	logger.Debug().
		Str("operation", string(op)).
		Strs("failed", result.ChecksFailed).
		Str("reason", result.BlockReason).
		Msg("Execution blocked")
	return result.Err
}

// CallsRequest selects covered calls for shares already held. Zero Shares
// means "count the shares in the account".
type CallsRequest struct {
	Ticker   string
	Shares   int
	Price    float64
	ScanPath string
}

// Price sources reported by CoveredCalls.
const (
	PriceFromFlag  = "flag"
	PriceFromScan  = "scan"
	PriceFromChain = "chain"
)

// CallsReport lists covered-call candidates for a ticker.
type CallsReport struct {
	Ticker      string                   `json:"ticker"`
	Price       float64                  `json:"price"`
	PriceSource string                   `json:"price_source"`
	Shares      int                      `json:"shares"`
	Candidates  []models.OptionCandidate `json:"candidates"`
}

// CoveredCalls lists call strikes above the reference price for the shares
// held. The price falls back from the flag to the scan document to the
// middle strike of the nearest expiration.
func (p *Pipeline) CoveredCalls(ctx context.Context, req CallsRequest) (*CallsReport, error) {
	ticker, err := p.normalize(ctx, req.Ticker)
	if err != nil {
		return nil, err
	}
	if err := p.requireBroker(); err != nil {
		return nil, err
	}

	shares := req.Shares
	if shares <= 0 {
		if shares, err = p.sharesHeld(ctx, ticker); err != nil {
			return nil, err
		}
	}

	chain, err := p.chain(ctx, ticker)
	if err != nil {
		return nil, errors.NewSymbolError(ticker, "option chain", err)
	}

	report := &CallsReport{Ticker: ticker, Shares: shares, Price: req.Price, PriceSource: PriceFromFlag}
	if report.Price <= 0 {
		price, err := p.ResolvePrice(ctx, ticker, 0, req.ScanPath)
		switch {
		case err == nil:
			report.Price, report.PriceSource = price, PriceFromScan
		case errors.Is(err, errors.ErrDataNotFound):
			mid, ok := options.MiddleStrike(chain)
			if !ok {
				return nil, errors.NewDataError("chain", ticker, "no strikes to approximate the price from", nil)
			}
			report.Price, report.PriceSource = mid, PriceFromChain
		default:
			return nil, err
		}
	}

	report.Candidates = p.finder.FindCC(chain, report.Price, shares)
	return report, nil
}

// sharesHeld sums the long equity shares of ticker in the account.
func (p *Pipeline) sharesHeld(ctx context.Context, ticker string) (int, error) {
	positions, err := p.broker.GetPositions(ctx)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, pos := range positions {
		if pos.InstrumentType == models.InstrumentEquity && strings.EqualFold(pos.Symbol, ticker) && !pos.IsShort() {
			total += pos.Quantity.Float64()
		}
	}
	return int(total), nil
}
