package options

import (
	"sort"
	"strings"

	"wheel-trader/internal/models"
)

// Default candidate window.
const (
	DefaultMinDTE = 20
	DefaultMaxDTE = 45
	DefaultLimit  = 10
)

// Finder selects wheel option candidates from a normalized chain.
type Finder struct {
	MinDTE int
	MaxDTE int
	Limit  int
}

// NewFinder creates a Finder with the given DTE window and result cap.
// Non-positive limits fall back to DefaultLimit.
func NewFinder(minDTE, maxDTE, limit int) *Finder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Finder{MinDTE: minDTE, MaxDTE: maxDTE, Limit: limit}
}

// DefaultFinder returns a Finder with the default 20-45 day window.
func DefaultFinder() *Finder {
	return NewFinder(DefaultMinDTE, DefaultMaxDTE, DefaultLimit)
}

// FindCSP returns cash-secured put candidates: out-of-the-money strikes
// whose assignment cost fits maxCash, highest strike first.
func (f *Finder) FindCSP(chain models.Chain, stockPrice, maxCash float64) []models.OptionCandidate {
	var out []models.OptionCandidate

	f.eachInWindow(chain, func(exp models.Expiration, s models.Strike) {
		cash := s.Price * models.ContractMultiplier
		if cash > maxCash || s.Price >= stockPrice {
			return
		}
		symbol := strings.TrimSpace(s.PutSymbol)
		if symbol == "" {
			return
		}
		out = append(out, models.OptionCandidate{
			OptionSymbol:     symbol,
			StreamerSymbol:   s.PutStreamerSymbol,
			Underlying:       chain.Underlying,
			Type:             models.OptionPut,
			Strike:           s.Price,
			ExpirationDate:   exp.Date,
			DaysToExpiration: exp.DaysToExpiration,
			CashRequired:     cash,
		})
	})

	sortCandidates(out, true)
	return f.cap(out)
}

// FindCC returns covered call candidates for sharesHeld shares:
// out-of-the-money strikes, lowest strike first. Fewer than 100 shares
// yields nothing.
func (f *Finder) FindCC(chain models.Chain, stockPrice float64, sharesHeld int) []models.OptionCandidate {
	contracts := sharesHeld / models.ContractMultiplier
	if contracts <= 0 {
		return nil
	}

	var out []models.OptionCandidate

	f.eachInWindow(chain, func(exp models.Expiration, s models.Strike) {
		if s.Price <= stockPrice {
			return
		}
		symbol := strings.TrimSpace(s.CallSymbol)
		if symbol == "" {
			return
		}
		out = append(out, models.OptionCandidate{
			OptionSymbol:     symbol,
			StreamerSymbol:   s.CallStreamerSymbol,
			Underlying:       chain.Underlying,
			Type:             models.OptionCall,
			Strike:           s.Price,
			ExpirationDate:   exp.Date,
			DaysToExpiration: exp.DaysToExpiration,
			Contracts:        contracts,
		})
	})

	sortCandidates(out, false)
	return f.cap(out)
}

func (f *Finder) eachInWindow(chain models.Chain, fn func(models.Expiration, models.Strike)) {
	for _, exp := range chain.Expirations {
		if exp.DaysToExpiration < f.MinDTE || exp.DaysToExpiration > f.MaxDTE {
			continue
		}
		for _, s := range exp.Strikes {
			fn(exp, s)
		}
	}
}

func (f *Finder) cap(out []models.OptionCandidate) []models.OptionCandidate {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortCandidates orders by strike, then DTE ascending, then symbol.
func sortCandidates(c []models.OptionCandidate, strikeDesc bool) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i], c[j]
		if a.Strike != b.Strike {
			if strikeDesc {
				return a.Strike > b.Strike
			}
			return a.Strike < b.Strike
		}
		if a.DaysToExpiration != b.DaysToExpiration {
			return a.DaysToExpiration < b.DaysToExpiration
		}
		return a.OptionSymbol < b.OptionSymbol
	})
}
