// Package options provides OCC option symbols, chain normalization and wheel
// candidate selection.
package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wheel-trader/internal/models"
)

const (
	rootWidth   = 6
	strikeWidth = 8
	symbolLen   = rootWidth + 6 + 1 + strikeWidth
)

var thousand = decimal.NewFromInt(1000)

// EncodeSymbol builds the 21-character OCC symbol for a contract:
// root padded to 6, YYMMDD, P or C, strike×1000 as 8 digits.
func EncodeSymbol(underlying string, expiry time.Time, optType models.OptionType, strike float64) string {
	root := strings.ToUpper(strings.TrimSpace(underlying))
	millis := decimal.NewFromFloat(strike).Mul(thousand).Round(0).IntPart()

	return fmt.Sprintf("%-*s%s%s%0*d", rootWidth, root, expiry.Format("060102"), optType.Code(), strikeWidth, millis)
}

// EncodeSymbolDate is EncodeSymbol with the expiry given as YYYY-MM-DD.
func EncodeSymbolDate(underlying, expiry string, optType models.OptionType, strike float64) (string, error) {
	date, err := models.ParseDate(expiry)
	if err != nil {
		return "", fmt.Errorf("invalid expiration date %q: %w", expiry, err)
	}
	return EncodeSymbol(underlying, date.Time, optType, strike), nil
}

// Contract is a decoded OCC option symbol.
type Contract struct {
	Underlying string
	Expiration models.Date
	Type       models.OptionType
	Strike     float64
}

// ParseSymbol decodes an OCC option symbol.
func ParseSymbol(symbol string) (Contract, error) {
	if len(symbol) != symbolLen {
		return Contract{}, fmt.Errorf("option symbol %q: expected %d characters, got %d", symbol, symbolLen, len(symbol))
	}

	root := strings.TrimSpace(symbol[:rootWidth])
	if root == "" {
		return Contract{}, fmt.Errorf("option symbol %q: empty root", symbol)
	}

	expiry, err := time.Parse("060102", symbol[rootWidth:rootWidth+6])
	if err != nil {
		return Contract{}, fmt.Errorf("option symbol %q: bad expiration: %w", symbol, err)
	}

	optType, ok := models.ParseOptionType(symbol[rootWidth+6 : rootWidth+7])
	if !ok {
		return Contract{}, fmt.Errorf("option symbol %q: bad option type", symbol)
	}

	millis, err := decimal.NewFromString(symbol[rootWidth+7:])
	if err != nil || millis.IsNegative() {
		return Contract{}, fmt.Errorf("option symbol %q: bad strike", symbol)
	}
	strike, _ := millis.Div(thousand).Float64()

	return Contract{
		Underlying: root,
		Expiration: models.Date{Time: expiry},
		Type:       optType,
		Strike:     strike,
	}, nil
}

// IsOptionSymbol reports whether s looks like an OCC option symbol.
func IsOptionSymbol(s string) bool {
	_, err := ParseSymbol(s)
	return err == nil
}
