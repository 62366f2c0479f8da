package trading

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
)

// EnrichStatus is the outcome of looking up options for one candidate.
type EnrichStatus string

const (
	EnrichOK           EnrichStatus = "ok"
	EnrichNoCandidates EnrichStatus = "no_candidates"
	EnrichLookupFailed EnrichStatus = "lookup_failed"
)

// MaxAlternatives is the number of contracts kept per enriched candidate,
// the best one included.
const MaxAlternatives = 5

// EnrichResult is one candidate stock with its best cash-secured put.
type EnrichResult struct {
	Stock        models.StockCandidate    `json:"stock"`
	Best         *models.OptionCandidate  `json:"best,omitempty"`
	Alternatives []models.OptionCandidate `json:"alternatives,omitempty"`
	Status       EnrichStatus             `json:"status"`
	Err          error                    `json:"-"`
}

// Enriched returns the results that carry a contract, in input order.
func Enriched(results []EnrichResult) []EnrichResult {
	var out []EnrichResult
	for _, r := range results {
		if r.Status == EnrichOK {
			out = append(out, r)
		}
	}
	return out
}

// Enrich looks up cash-secured puts for each stock. Results keep the order
// of stocks. A failed lookup only marks its own result, except for fatal
// errors such as a rejected login, which abort the run.
func (p *Pipeline) Enrich(ctx context.Context, stocks []models.StockCandidate) ([]EnrichResult, error) {
	if err := p.requireBroker(); err != nil {
		return nil, err
	}

	results := make([]EnrichResult, len(stocks))
	workers := p.wheel.EnrichWorkers

	if workers <= 1 || len(stocks) <= 1 {
		for i := range stocks {
			results[i] = p.EnrichStock(ctx, stocks[i])
			if errors.IsFatal(results[i].Err) {
				return nil, results[i].Err
			}
		}
		return results, nil
	}

	// The first fatal error cancels the pool; queued lookups are skipped.
	wp := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i := range stocks {
		i := i
		wp.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = p.EnrichStock(ctx, stocks[i])
			if errors.IsFatal(results[i].Err) {
				return results[i].Err
			}
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// EnrichStock fetches the option chain of one stock and picks its best
// cash-secured put within the budget.
func (p *Pipeline) EnrichStock(ctx context.Context, stock models.StockCandidate) EnrichResult {
	result := EnrichResult{Stock: stock}
	logger := logging.WithSymbol(p.log(ctx), stock.Ticker)

	chain, err := p.chain(ctx, stock.Ticker)
	if err != nil {
		result.Status = EnrichLookupFailed
		result.Err = errors.NewSymbolError(stock.Ticker, "enrich", err)
		logger.Warn().Err(err).Msg("Option chain lookup failed")
		return result
	}

	csps := p.finder.FindCSP(chain, stock.Price.Float64(), p.wheel.Budget)
	if len(csps) == 0 {
		result.Status = EnrichNoCandidates
		logger.Debug().Msg("No cash-secured put within constraints")
		return result
	}

	best := csps[0]
	result.Status = EnrichOK
	result.Best = &best
	if len(csps) > MaxAlternatives {
		csps = csps[:MaxAlternatives]
	}
	result.Alternatives = csps
	logging.LogCandidate(logger, stock.Ticker, best.OptionSymbol, best.Strike, best.DaysToExpiration)
	return result
}
