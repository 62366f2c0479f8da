package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StockCandidate is one equity row of a scan document, plus the wheel score
// derived after filtering.
type StockCandidate struct {
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name"`
	Price        FlexFloat `json:"price"`
	ATH          FlexFloat `json:"ath"`
	MarketCap    FlexFloat `json:"market_cap"`
	Sector       string    `json:"sector"`
	PctFromATH   FlexFloat `json:"pct_from_ath"`
	Change1D     FlexFloat `json:"change_1d"`
	Streak       FlexFloat `json:"streak"`
	RSI          FlexFloat `json:"rsi"`
	ROC30D       FlexFloat `json:"roc_30d"`
	RSVsQQQ      FlexFloat `json:"rs_vs_qqq"`
	VolSurge     FlexFloat `json:"vol_surge"`
	PctVs50DMA   FlexFloat `json:"pct_vs_50dma"`
	Is52wHigh    FlexBool  `json:"is_52w_high"`
	Signal       string    `json:"signal"`
	AIAssessment string    `json:"ai_assessment"`
	FairValue    FlexFloat `json:"fair_value"`
	Upside       FlexFloat `json:"upside"`
	Rating       string    `json:"rating"`
	FVVsATH      FlexFloat `json:"fv_vs_ath"`

	WheelScore int `json:"wheel_score"`
}

// ScanDocument is the externally produced scanner output. Every top-level
// array other than the known scalar keys is a category of stocks.
type ScanDocument struct {
	Timestamp    string
	QQQReturn30d float64
	TotalStocks  int
	Categories   map[string][]StockCandidate
}

// Category returns the stocks of a category, or nil when absent.
func (d *ScanDocument) Category(name string) []StockCandidate {
	if d == nil {
		return nil
	}
	return d.Categories[name]
}

// CategoryNames returns the category names in sorted order.
func (d *ScanDocument) CategoryNames() []string {
	names := make([]string, 0, len(d.Categories))
	for name := range d.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *ScanDocument) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	doc := ScanDocument{Categories: make(map[string][]StockCandidate)}
	for key, value := range raw {
		switch key {
		case "timestamp":
			var ts string
			if err := json.Unmarshal(value, &ts); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			doc.Timestamp = ts
		case "qqq_30d_return":
			v, _ := ParseNumber(value)
			doc.QQQReturn30d = v
		case "total_stocks":
			v, _ := ParseNumber(value)
			doc.TotalStocks = int(v)
		default:
			if len(value) == 0 || value[0] != '[' {
				continue
			}
			var stocks []StockCandidate
			if err := json.Unmarshal(value, &stocks); err != nil {
				return fmt.Errorf("category %s: %w", key, err)
			}
			doc.Categories[key] = stocks
		}
	}

	*d = doc
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d ScanDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Categories)+3)
	for name, stocks := range d.Categories {
		out[name] = stocks
	}
	out["timestamp"] = d.Timestamp
	out["qqq_30d_return"] = d.QQQReturn30d
	out["total_stocks"] = d.TotalStocks
	return json.Marshal(out)
}
