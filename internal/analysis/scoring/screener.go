package scoring

import (
	"fmt"
	"sort"
	"strings"

	"wheel-trader/internal/models"
)

// FilterType represents the type of screener filter.
type FilterType string

const (
	FilterExcluded FilterType = "excluded"
	FilterMaxPrice FilterType = "max_price"
	FilterMinPrice FilterType = "min_price"
	FilterRSI      FilterType = "rsi"
	FilterATHDrop  FilterType = "ath_drop"
	FilterUpside   FilterType = "upside"
)

// FilterOperator represents the comparison operator for a filter.
type FilterOperator string

const (
	OpGreaterThanEqual FilterOperator = ">="
	OpLessThanEqual    FilterOperator = "<="
)

// Filter represents a single numeric screener condition.
type Filter struct {
	Type     FilterType
	Operator FilterOperator
	Value    float64
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %g", f.Type, f.Operator, f.Value)
}

// Matches reports whether the stock passes the filter.
func (f Filter) Matches(stock models.StockCandidate) bool {
	v := f.field(stock)
	switch f.Operator {
	case OpGreaterThanEqual:
		return v >= f.Value
	case OpLessThanEqual:
		return v <= f.Value
	}
	return false
}

func (f Filter) field(stock models.StockCandidate) float64 {
	switch f.Type {
	case FilterMaxPrice, FilterMinPrice:
		return stock.Price.Float64()
	case FilterRSI:
		return stock.RSI.Float64()
	case FilterATHDrop:
		return stock.PctFromATH.Float64()
	case FilterUpside:
		return stock.Upside.Float64()
	}
	return 0
}

// Criteria are the wheel screening thresholds.
type Criteria struct {
	Budget         float64
	MaxRSI         float64
	MinATHDrop     float64
	MinPrice       float64
	MinUpside      float64
	ExcludeTickers []string
	Categories     []string
}

// DefaultCriteria returns the stock wheel thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		Budget:         5000,
		MaxRSI:         45,
		MinATHDrop:     -15,
		MinPrice:       5,
		ExcludeTickers: []string{"MSTR", "COIN"},
		Categories:     []string{"watchlist", "big_drops", "down_streaks"},
	}
}

// MaxPrice is the highest share price that 100 shares of fits the budget.
func (c Criteria) MaxPrice() float64 {
	return c.Budget / models.ContractMultiplier
}

// Filters expands the criteria into the ordered list of hard filters.
// A zero MinUpside disables the upside filter.
func (c Criteria) Filters() []Filter {
	filters := []Filter{
		{Type: FilterMaxPrice, Operator: OpLessThanEqual, Value: c.MaxPrice()},
		{Type: FilterMinPrice, Operator: OpGreaterThanEqual, Value: c.MinPrice},
		{Type: FilterRSI, Operator: OpLessThanEqual, Value: c.MaxRSI},
		{Type: FilterATHDrop, Operator: OpLessThanEqual, Value: c.MinATHDrop},
	}
	if c.MinUpside > 0 {
		filters = append(filters, Filter{Type: FilterUpside, Operator: OpGreaterThanEqual, Value: c.MinUpside})
	}
	return filters
}

// ScreenerResult represents the result of screening a single stock.
type ScreenerResult struct {
	Symbol   string
	Score    int
	Passed   bool
	Rejected *Filter
}

// Screener merges scan categories, applies hard filters and ranks by score.
type Screener struct {
	criteria Criteria
	filters  []Filter
	exclude  map[string]bool
}

// NewScreener creates a new wheel screener.
func NewScreener(criteria Criteria) *Screener {
	if len(criteria.Categories) == 0 {
		criteria.Categories = DefaultCriteria().Categories
	}
	exclude := make(map[string]bool, len(criteria.ExcludeTickers))
	for _, t := range criteria.ExcludeTickers {
		exclude[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	return &Screener{
		criteria: criteria,
		filters:  criteria.Filters(),
		exclude:  exclude,
	}
}

// Criteria returns the screener's criteria.
func (s *Screener) Criteria() Criteria {
	return s.criteria
}

// Merge concatenates the configured categories in order and drops repeated
// tickers, keeping the first occurrence. Missing categories are skipped.
func (s *Screener) Merge(doc *models.ScanDocument) []models.StockCandidate {
	seen := make(map[string]bool)
	var out []models.StockCandidate
	for _, name := range s.criteria.Categories {
		for _, stock := range doc.Category(name) {
			if stock.Ticker == "" || seen[stock.Ticker] {
				continue
			}
			seen[stock.Ticker] = true
			out = append(out, stock)
		}
	}
	return out
}

// Evaluate runs the hard filters against one stock.
func (s *Screener) Evaluate(stock models.StockCandidate) ScreenerResult {
	result := ScreenerResult{Symbol: stock.Ticker, Score: Score(stock)}
	if s.exclude[strings.ToUpper(stock.Ticker)] {
		result.Rejected = &Filter{Type: FilterExcluded}
		return result
	}
	for i := range s.filters {
		if !s.filters[i].Matches(stock) {
			f := s.filters[i]
			result.Rejected = &f
			return result
		}
	}
	result.Passed = true
	return result
}

// Screen returns the wheel candidates of a scan document, best score first.
// Equal scores keep scan order. limit <= 0 returns every candidate.
func (s *Screener) Screen(doc *models.ScanDocument, limit int) []models.StockCandidate {
	var out []models.StockCandidate
	for _, stock := range s.Merge(doc) {
		res := s.Evaluate(stock)
		if !res.Passed {
			continue
		}
		stock.WheelScore = res.Score
		out = append(out, stock)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WheelScore > out[j].WheelScore
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
