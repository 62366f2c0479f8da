// Package trading builds wheel orders and runs the scan-to-order pipeline.
package trading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/options"
)

// FormatPrice renders a limit price with exactly two decimals.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// BuildOpenOrder builds a sell-to-open limit order for one option leg.
// A put is a cash-secured put, a call is a covered call; both collect a
// credit.
func BuildOpenOrder(optType models.OptionType, underlying string, expiry time.Time, strike, premium float64, qty int) (*models.Order, error) {
	if strings.TrimSpace(underlying) == "" {
		return nil, errors.NewValidationError("underlying", underlying, "must not be empty")
	}
	if strike <= 0 {
		return nil, errors.NewValidationError("strike", strike, "must be positive")
	}
	if err := checkOrderInputs(premium, qty); err != nil {
		return nil, err
	}

	symbol := options.EncodeSymbol(strings.ToUpper(strings.TrimSpace(underlying)), expiry, optType, strike)
	return singleLegOrder(symbol, premium, qty, models.PriceEffectCredit, models.ActionSellToOpen), nil
}

// BuildCloseOrder builds a buy-to-close limit order for a short option.
func BuildCloseOrder(optionSymbol string, price float64, qty int) (*models.Order, error) {
	if strings.TrimSpace(optionSymbol) == "" {
		return nil, errors.NewValidationError("symbol", optionSymbol, "must not be empty")
	}
	if err := checkOrderInputs(price, qty); err != nil {
		return nil, err
	}
	return singleLegOrder(optionSymbol, price, qty, models.PriceEffectDebit, models.ActionBuyToClose), nil
}

// Breakeven returns the assignment breakeven of a short put.
func Breakeven(strike, premium float64) float64 {
	return decimal.NewFromFloat(strike).Sub(decimal.NewFromFloat(premium)).InexactFloat64()
}

func checkOrderInputs(price float64, qty int) error {
	if qty < 1 {
		return errors.NewValidationError("quantity", qty, "must be at least 1")
	}
	if price <= 0 {
		return errors.NewValidationError("price", price, "must be positive")
	}
	return nil
}

func singleLegOrder(symbol string, price float64, qty int, effect models.PriceEffect, action models.OrderAction) *models.Order {
	return &models.Order{
		TimeInForce: models.TimeInForceDay,
		OrderType:   models.OrderTypeLimit,
		Price:       FormatPrice(price),
		PriceEffect: effect,
		Legs: []models.OrderLeg{{
			InstrumentType: models.InstrumentEquityOption,
			Symbol:         symbol,
			Quantity:       qty,
			Action:         action,
		}},
	}
}
