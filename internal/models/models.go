// Package models provides domain models for the wheel-trading application.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the right of an option contract.
type OptionType string

const (
	OptionPut  OptionType = "put"
	OptionCall OptionType = "call"
)

// Code returns the single-letter OCC code for the option type.
func (t OptionType) Code() string {
	if t == OptionCall {
		return "C"
	}
	return "P"
}

// ParseOptionType accepts put/call in any case, or the P/C codes.
func ParseOptionType(s string) (OptionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "put", "p":
		return OptionPut, true
	case "call", "c":
		return OptionCall, true
	}
	return "", false
}

// PriceEffect represents the cash direction of an order.
type PriceEffect string

const (
	PriceEffectCredit PriceEffect = "Credit"
	PriceEffectDebit  PriceEffect = "Debit"
)

// OrderAction represents a leg action.
type OrderAction string

const (
	ActionSellToOpen  OrderAction = "Sell to Open"
	ActionBuyToClose  OrderAction = "Buy to Close"
	ActionBuyToOpen   OrderAction = "Buy to Open"
	ActionSellToClose OrderAction = "Sell to Close"
)

const (
	InstrumentEquityOption = "Equity Option"
	InstrumentEquity       = "Equity"

	TimeInForceDay = "Day"
	OrderTypeLimit = "Limit"

	// ContractMultiplier is the number of shares per equity option contract.
	ContractMultiplier = 100
)

// DateLayout is the calendar date layout used by the brokerage.
const DateLayout = "2006-01-02"

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FlexFloat decodes from a JSON number, a numeric string, or null.
// Unparseable strings decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	v, _ := ParseNumber(b)
	*f = FlexFloat(v)
	return nil
}

// Float64 returns the value as float64.
func (f FlexFloat) Float64() float64 {
	return float64(f)
}

// FlexBool decodes from a JSON bool or number (non-zero is true).
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*f = true
		return nil
	case "false", "null", `""`:
		*f = false
		return nil
	}
	v, ok := ParseNumber(b)
	*f = FlexBool(ok && v != 0)
	return nil
}

// ParseNumber reads a raw JSON value that is either a number or a string
// holding a number. ok is false when the value is absent or not numeric.
func ParseNumber(raw []byte) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
