package models

import (
	"encoding/json"
	"time"
)

// Order is the brokerage order payload.
type Order struct {
	TimeInForce string      `json:"time-in-force"`
	OrderType   string      `json:"order-type"`
	Price       string      `json:"price"`
	PriceEffect PriceEffect `json:"price-effect"`
	Legs        []OrderLeg  `json:"legs"`
}

// OrderLeg is one leg of an order.
type OrderLeg struct {
	InstrumentType string      `json:"instrument-type"`
	Symbol         string      `json:"symbol"`
	Quantity       int         `json:"quantity"`
	Action         OrderAction `json:"action"`
}

// Balance represents account balances.
type Balance struct {
	AccountNumber         string    `json:"account-number"`
	CashBalance           FlexFloat `json:"cash-balance"`
	NetLiquidatingValue   FlexFloat `json:"net-liquidating-value"`
	EquityBuyingPower     FlexFloat `json:"equity-buying-power"`
	DerivativeBuyingPower FlexFloat `json:"derivative-buying-power"`
}

// Position represents an open position.
type Position struct {
	Symbol            string    `json:"symbol"`
	UnderlyingSymbol  string    `json:"underlying-symbol"`
	InstrumentType    string    `json:"instrument-type"`
	Quantity          FlexFloat `json:"quantity"`
	QuantityDirection string    `json:"quantity-direction"`
	AverageOpenPrice  FlexFloat `json:"average-open-price"`
	ClosePrice        FlexFloat `json:"close-price"`
	RealizedDayGain   FlexFloat `json:"realized-day-gain"`
	ExpiresAt         string    `json:"expires-at,omitempty"`
}

// IsShort reports whether the position is a short.
func (p Position) IsShort() bool {
	return p.QuantityDirection == "Short"
}

// LiveOrder is an order as reported back by the brokerage.
type LiveOrder struct {
	ID               FlexID         `json:"id"`
	Status           string         `json:"status"`
	OrderType        string         `json:"order-type"`
	TimeInForce      string         `json:"time-in-force"`
	Price            FlexFloat      `json:"price"`
	PriceEffect      PriceEffect    `json:"price-effect"`
	UnderlyingSymbol string         `json:"underlying-symbol"`
	Legs             []LiveOrderLeg `json:"legs"`
	ReceivedAt       *time.Time     `json:"received-at,omitempty"`
}

// LiveOrderLeg is a leg of a LiveOrder.
type LiveOrderLeg struct {
	Symbol         string      `json:"symbol"`
	InstrumentType string      `json:"instrument-type"`
	Action         OrderAction `json:"action"`
	Quantity       FlexFloat   `json:"quantity"`
}

// FlexID decodes an identifier sent as either a number or a string.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*id = ""
		return nil
	}
	*id = FlexID(n.String())
	return nil
}

// OrderWarning is a non-fatal message attached to an order response.
type OrderWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BuyingPowerEffect summarizes the buying-power impact of an order.
type BuyingPowerEffect struct {
	ChangeInBuyingPower       FlexFloat `json:"change-in-buying-power"`
	ChangeInBuyingPowerEffect string    `json:"change-in-buying-power-effect"`
	NewBuyingPower            FlexFloat `json:"new-buying-power"`
	IsSpread                  bool      `json:"is-spread"`
}

// FeeCalculation is the fee breakdown of an order response.
type FeeCalculation struct {
	TotalFees       FlexFloat `json:"total-fees"`
	TotalFeesEffect string    `json:"total-fees-effect"`
}

// OrderResult is the response to a dry-run or submitted order. Raw keeps the
// undecoded payload for display.
type OrderResult struct {
	Order             LiveOrder          `json:"order"`
	Warnings          []OrderWarning     `json:"warnings"`
	BuyingPowerEffect *BuyingPowerEffect `json:"buying-power-effect,omitempty"`
	FeeCalculation    *FeeCalculation    `json:"fee-calculation,omitempty"`
	Raw               json.RawMessage    `json:"-"`
}

// Equity describes an equity instrument.
type Equity struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Exchange    string `json:"listed-market"`
	IsETF       bool   `json:"is-etf"`
	Active      bool   `json:"active"`
}

// Session is an authenticated brokerage session.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Username  string
}

// Valid reports whether the session can be used at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}
