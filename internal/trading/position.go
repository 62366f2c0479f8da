package trading

import (
	"fmt"
	"math"
	"strings"
	"time"

	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
)

// WheelLeg classifies a position by its role in the wheel.
type WheelLeg string

const (
	LegCashSecuredPut WheelLeg = "csp"
	LegCoveredCall    WheelLeg = "cc"
	LegShares         WheelLeg = "shares"
	LegOther          WheelLeg = "other"
)

// ExpiringSoonDays is the DTE at or below which a short option is flagged.
const ExpiringSoonDays = 7

// PositionDetail is a position decoded into its wheel role.
type PositionDetail struct {
	Position     models.Position `json:"position"`
	Leg          WheelLeg        `json:"leg"`
	Underlying   string          `json:"underlying"`
	Strike       float64         `json:"strike,omitempty"`
	Expiration   *models.Date    `json:"expiration,omitempty"`
	DaysToExpiry int             `json:"dte,omitempty"`
	Collateral   float64         `json:"collateral,omitempty"`
	CloseCommand string          `json:"close_command,omitempty"`
}

// ExpiringSoon reports whether a short option is within ExpiringSoonDays.
func (d PositionDetail) ExpiringSoon() bool {
	return d.Expiration != nil && (d.Leg == LegCashSecuredPut || d.Leg == LegCoveredCall) &&
		d.DaysToExpiry <= ExpiringSoonDays
}

// PositionSummary groups positions by wheel role.
type PositionSummary struct {
	Positions     []PositionDetail `json:"positions"`
	ShortPuts     int              `json:"short_puts"`
	ShortCalls    int              `json:"short_calls"`
	ShareLots     int              `json:"share_lots"`
	Collateral    float64          `json:"collateral"`
	ExpiringSoon  int              `json:"expiring_soon"`
	PositionCount int              `json:"position_count"`
}

// SummarizePositions decodes option symbols and classifies each position.
// Zero-quantity rows are skipped.
func SummarizePositions(positions []models.Position, now time.Time) *PositionSummary {
	summary := &PositionSummary{Positions: make([]PositionDetail, 0, len(positions))}

	for _, pos := range positions {
		if pos.Quantity.Float64() == 0 {
			continue
		}
		detail := describePosition(pos, now)
		summary.Positions = append(summary.Positions, detail)

		switch detail.Leg {
		case LegCashSecuredPut:
			summary.ShortPuts++
			summary.Collateral += detail.Collateral
		case LegCoveredCall:
			summary.ShortCalls++
		case LegShares:
			summary.ShareLots++
		}
		if detail.ExpiringSoon() {
			summary.ExpiringSoon++
		}
	}

	summary.PositionCount = len(summary.Positions)
	return summary
}

func describePosition(pos models.Position, now time.Time) PositionDetail {
	detail := PositionDetail{Position: pos, Leg: LegOther, Underlying: pos.UnderlyingSymbol}
	if detail.Underlying == "" {
		detail.Underlying = pos.Symbol
	}

	if pos.InstrumentType == models.InstrumentEquity {
		if !pos.IsShort() {
			detail.Leg = LegShares
		}
		return detail
	}

	contract, err := options.ParseSymbol(pos.Symbol)
	if err != nil {
		return detail
	}
	expiration := contract.Expiration
	detail.Underlying = contract.Underlying
	detail.Strike = contract.Strike
	detail.Expiration = &expiration
	detail.DaysToExpiry = int(math.Round(expiration.Sub(now).Hours() / 24))

	if !pos.IsShort() {
		return detail
	}
	qty := math.Abs(pos.Quantity.Float64())
	detail.CloseCommand = fmt.Sprintf("close %q --price <limit> --qty %d", strings.TrimSpace(pos.Symbol), int(qty))
	switch contract.Type {
	case models.OptionPut:
		detail.Leg = LegCashSecuredPut
		detail.Collateral = contract.Strike * models.ContractMultiplier * qty
	case models.OptionCall:
		detail.Leg = LegCoveredCall
	}
	return detail
}
