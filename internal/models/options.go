package models

import (
	"bytes"
	"encoding/json"
)

// ChainResponse is the decoded payload of the nested option-chain endpoint.
// The brokerage wraps expirations in items[0]; some fixtures carry a bare
// expirations array instead.
type ChainResponse struct {
	Items       []NestedChain     `json:"items"`
	Expirations []ChainExpiration `json:"expirations"`
}

// NestedChain is one underlying's entry in a nested chain response.
type NestedChain struct {
	UnderlyingSymbol  string            `json:"underlying-symbol"`
	RootSymbol        string            `json:"root-symbol"`
	SharesPerContract int               `json:"shares-per-contract"`
	Expirations       []ChainExpiration `json:"expirations"`
}

// ChainExpiration is an expiration as sent by the brokerage.
type ChainExpiration struct {
	ExpirationDate   string        `json:"expiration-date"`
	DaysToExpiration *int          `json:"days-to-expiration"`
	ExpirationType   string        `json:"expiration-type,omitempty"`
	Strikes          []ChainStrike `json:"strikes"`
}

// ChainStrike is a strike row as sent by the brokerage. StrikePrice is kept
// raw because it arrives as either a string or a number.
type ChainStrike struct {
	StrikePrice        json.RawMessage `json:"strike-price"`
	Call               LegRef          `json:"call"`
	Put                LegRef          `json:"put"`
	CallStreamerSymbol string          `json:"call-streamer-symbol"`
	PutStreamerSymbol  string          `json:"put-streamer-symbol"`
}

// LegRef is an option leg reference, sent either as a bare symbol string or
// as an object with a symbol field.
type LegRef string

// UnmarshalJSON implements json.Unmarshaler.
func (l *LegRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LegRef(s)
		return nil
	}
	var obj struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		// Unknown shapes mean "no leg" rather than a failed chain.
		*l = ""
		return nil
	}
	*l = LegRef(obj.Symbol)
	return nil
}

// Chain is the normalized option chain for one underlying.
type Chain struct {
	Underlying  string
	Expirations []Expiration
}

// Expiration is one expiration date of a normalized chain.
type Expiration struct {
	Date             Date
	DaysToExpiration int
	Strikes          []Strike
}

// Strike is one strike row of a normalized chain. Empty symbols mean the leg
// is not listed.
type Strike struct {
	Price              float64
	CallSymbol         string
	PutSymbol          string
	CallStreamerSymbol string
	PutStreamerSymbol  string
}

// OptionCandidate is a single option contract proposed for a wheel leg.
type OptionCandidate struct {
	OptionSymbol     string     `json:"symbol"`
	StreamerSymbol   string     `json:"streamer_symbol,omitempty"`
	Underlying       string     `json:"underlying"`
	Type             OptionType `json:"type"`
	Strike           float64    `json:"strike"`
	ExpirationDate   Date       `json:"exp_date"`
	DaysToExpiration int        `json:"dte"`
	CashRequired     float64    `json:"cash_needed,omitempty"`
	Contracts        int        `json:"contracts,omitempty"`
}
