// Package scoring ranks scan candidates for the wheel strategy.
package scoring

import (
	"strings"

	"wheel-trader/internal/models"
)

// Signal names used in a Breakdown.
const (
	SignalRSI      = "rsi"
	SignalUpside   = "upside"
	SignalRating   = "rating"
	SignalATH      = "ath_discount"
	SignalStreak   = "streak"
	SignalAI       = "ai_assessment"
	SignalVolSurge = "vol_surge"
)

// Breakdown is the per-signal contribution to a wheel score.
type Breakdown map[string]int

// Total sums the contributions.
func (b Breakdown) Total() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// Score returns the wheel score of a stock. Higher means a better put-selling
// candidate: oversold, discounted, and favoured by analysts.
func Score(stock models.StockCandidate) int {
	return ScoreBreakdown(stock).Total()
}

// ScoreBreakdown returns the points awarded by each signal.
func ScoreBreakdown(stock models.StockCandidate) Breakdown {
	return Breakdown{
		SignalRSI:      rsiPoints(stock.RSI.Float64()),
		SignalUpside:   upsidePoints(stock.Upside.Float64()),
		SignalRating:   ratingPoints(stock.Rating),
		SignalATH:      athPoints(stock.PctFromATH.Float64()),
		SignalStreak:   streakPoints(stock.Streak.Float64()),
		SignalAI:       aiPoints(stock.AIAssessment),
		SignalVolSurge: volSurgePoints(stock.VolSurge.Float64()),
	}
}

func rsiPoints(rsi float64) int {
	switch {
	case rsi < 30:
		return 30
	case rsi < 40:
		return 15
	case rsi < 45:
		return 5
	}
	return 0
}

func upsidePoints(upside float64) int {
	switch {
	case upside >= 50:
		return 25
	case upside >= 30:
		return 15
	case upside >= 15:
		return 8
	}
	return 0
}

func ratingPoints(rating string) int {
	switch strings.ToLower(strings.TrimSpace(rating)) {
	case "strong_buy":
		return 20
	case "buy":
		return 12
	case "hold":
		return 3
	}
	return 0
}

func athPoints(pct float64) int {
	switch {
	case pct <= -50:
		return 15
	case pct <= -30:
		return 10
	case pct <= -20:
		return 5
	}
	return 0
}

// Down streaks favour a mean-reversion entry.
func streakPoints(streak float64) int {
	switch {
	case streak <= -3:
		return 10
	case streak <= -2:
		return 5
	}
	return 0
}

func aiPoints(assessment string) int {
	ai := strings.ToUpper(assessment)
	switch {
	case strings.HasPrefix(ai, "BUY"):
		return 15
	case strings.HasPrefix(ai, "WAIT"):
		return 3
	case strings.HasPrefix(ai, "PASS"):
		return -5
	}
	return 0
}

func volSurgePoints(surge float64) int {
	if surge > 2 {
		return 5
	}
	return 0
}
