package security

import (
	"fmt"
	"regexp"
	"strings"

	"wheel-trader/internal/errors"
)

// Validation patterns
var (
	// US equity tickers, with share-class separators (BRK.B, BF/B).
	symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9./-]{0,9}$`)

	// Strict form: up to five letters and an optional one-letter class.
	strictSymbolPattern = regexp.MustCompile(`^[A-Z]{1,5}([./][A-Z])?$`)

	// OCC option symbol: root padded to 6, YYMMDD, C or P, 8 strike digits.
	optionSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9./ ]{5}\d{6}[CP]\d{8}$`)

	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

	// Token patterns for detection (not validation)
	tokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(session[_-]?token|remember[_-]?token|authorization|password)[=:\s]+["']?([A-Za-z0-9_\-\.+/=]{8,})["']?`),
		regexp.MustCompile(`([A-Za-z0-9+/_\-]{32,})`), // Generic long tokens
	}
)

// Limits applied to order inputs.
const (
	MaxContracts   = 100
	MaxOptionPrice = 10000.0
)

// InputValidator provides input validation functionality.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator. Strict mode only accepts
// plain listed-equity tickers.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// NormalizeSymbol validates a ticker and returns it upper-cased and trimmed.
func (v *InputValidator) NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.TrimSpace(symbol)
	normalized := strings.ToUpper(trimmed)

	if normalized == "" {
		return "", errors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if !symbolPattern.MatchString(normalized) {
		return "", errors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	if v.strictMode && !strictSymbolPattern.MatchString(normalized) {
		return "", errors.NewValidationError("symbol", symbol, "not a listed equity ticker")
	}
	return normalized, nil
}

// ValidateSymbol validates a stock ticker.
func (v *InputValidator) ValidateSymbol(symbol string) error {
	_, err := v.NormalizeSymbol(symbol)
	return err
}

// ValidateOptionSymbol validates an OCC option symbol.
func (v *InputValidator) ValidateOptionSymbol(symbol string) error {
	if !optionSymbolPattern.MatchString(symbol) {
		return errors.NewValidationError("option_symbol", symbol, "expected a 21-character OCC symbol such as \"F     260320P00012000\"")
	}
	return nil
}

// ValidateOrderID validates an order ID.
func (v *InputValidator) ValidateOrderID(orderID string) error {
	orderID = strings.TrimSpace(orderID)

	if orderID == "" {
		return errors.NewValidationError("order_id", orderID, "order ID cannot be empty")
	}
	if !orderIDPattern.MatchString(orderID) {
		return errors.NewValidationError("order_id", orderID, "invalid order ID format")
	}
	return nil
}

// ValidateQuantity validates a contract quantity.
func (v *InputValidator) ValidateQuantity(qty int) error {
	if qty <= 0 {
		return errors.NewValidationError("quantity", qty, "quantity must be positive")
	}
	if qty > MaxContracts {
		return errors.NewValidationError("quantity", qty, fmt.Sprintf("quantity exceeds maximum of %d contracts", MaxContracts))
	}
	return nil
}

// ValidatePrice validates a per-share option price.
func (v *InputValidator) ValidatePrice(price float64) error {
	if price <= 0 {
		return errors.NewValidationError("price", fmt.Sprintf("%.2f", price), "price must be positive")
	}
	if price > MaxOptionPrice {
		return errors.NewValidationError("price", fmt.Sprintf("%.2f", price), "price exceeds maximum allowed")
	}
	return nil
}

// MaskSensitive masks tokens and credentials embedded in a string.
func MaskSensitive(input string) string {
	result := input

	for _, pattern := range tokenPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if len(match) > 8 {
				return match[:4] + strings.Repeat("*", len(match)-8) + match[len(match)-4:]
			}
			return strings.Repeat("*", len(match))
		})
	}

	return result
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
