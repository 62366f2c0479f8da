package options

import (
	"math"
	"sort"
	"strings"
	"time"

	"wheel-trader/internal/models"
)

// Expirations normalizes the expirations of a nested chain response. It
// accepts both the items[0] envelope and a bare expirations array and never
// fails: an empty or malformed response yields an empty slice.
//
// Strikes whose price cannot be read are dropped, as are expirations without
// a readable date. A missing days-to-expiration is computed from the date
// relative to now.
func Expirations(resp *models.ChainResponse, now time.Time) []models.Expiration {
	raw := rawExpirations(resp)
	out := make([]models.Expiration, 0, len(raw))

	for _, exp := range raw {
		date, err := models.ParseDate(exp.ExpirationDate)
		if err != nil {
			continue
		}

		dte := daysBetween(now, date.Time)
		if exp.DaysToExpiration != nil {
			dte = *exp.DaysToExpiration
		}

		strikes := make([]models.Strike, 0, len(exp.Strikes))
		for _, s := range exp.Strikes {
			price, ok := models.ParseNumber(s.StrikePrice)
			if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
				continue
			}
			strikes = append(strikes, models.Strike{
				Price:              price,
				CallSymbol:         string(s.Call),
				PutSymbol:          string(s.Put),
				CallStreamerSymbol: s.CallStreamerSymbol,
				PutStreamerSymbol:  s.PutStreamerSymbol,
			})
		}

		out = append(out, models.Expiration{
			Date:             date,
			DaysToExpiration: dte,
			Strikes:          strikes,
		})
	}

	return out
}

// NewChain normalizes resp into a Chain for underlying.
func NewChain(underlying string, resp *models.ChainResponse, now time.Time) models.Chain {
	return models.Chain{
		Underlying:  strings.ToUpper(strings.TrimSpace(underlying)),
		Expirations: Expirations(resp, now),
	}
}

// MiddleStrike returns the middle strike of the nearest expiration, used as
// a rough reference price when no quote is available.
func MiddleStrike(chain models.Chain) (float64, bool) {
	var nearest *models.Expiration
	for i := range chain.Expirations {
		exp := &chain.Expirations[i]
		if len(exp.Strikes) == 0 {
			continue
		}
		if nearest == nil || exp.DaysToExpiration < nearest.DaysToExpiration {
			nearest = exp
		}
	}
	if nearest == nil {
		return 0, false
	}

	prices := make([]float64, len(nearest.Strikes))
	for i, s := range nearest.Strikes {
		prices[i] = s.Price
	}
	sort.Float64s(prices)
	return prices[len(prices)/2], true
}

func rawExpirations(resp *models.ChainResponse) []models.ChainExpiration {
	if resp == nil {
		return nil
	}
	if len(resp.Items) > 0 && len(resp.Items[0].Expirations) > 0 {
		return resp.Items[0].Expirations
	}
	return resp.Expirations
}

func daysBetween(now, date time.Time) int {
	return int(math.Round(date.Sub(now).Hours() / 24))
}
