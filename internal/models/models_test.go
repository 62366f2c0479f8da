package models

import (
	"encoding/json"
	"testing"
)

func TestScanDocumentCategories(t *testing.T) {
	raw := `{
		"timestamp": "2026-02-20T14:00:00Z",
		"qqq_30d_return": "2.5",
		"total_stocks": 3,
		"watchlist": [{"ticker": "F", "price": 12.5, "is_52w_high": 0}],
		"big_drops": [{"ticker": "SOFI", "price": "8.1", "is_52w_high": true}],
		"meta": {"source": "scanner"}
	}`

	var doc ScanDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc.Timestamp != "2026-02-20T14:00:00Z" {
		t.Errorf("timestamp = %q", doc.Timestamp)
	}
	if doc.QQQReturn30d != 2.5 || doc.TotalStocks != 3 {
		t.Errorf("header = %v / %d", doc.QQQReturn30d, doc.TotalStocks)
	}
	if len(doc.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", doc.CategoryNames())
	}
	if got := doc.Category("big_drops")[0]; got.Price != 8.1 || !bool(got.Is52wHigh) {
		t.Errorf("big_drops[0] = %+v", got)
	}
	if bool(doc.Category("watchlist")[0].Is52wHigh) {
		t.Error("numeric 0 should decode as false")
	}
	if doc.Category("missing") != nil {
		t.Error("missing category should be nil")
	}
}

func TestLegRefShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want LegRef
	}{
		{`"F     260320P00013000"`, "F     260320P00013000"},
		{`{"symbol": "F     260320C00013000"}`, "F     260320C00013000"},
		{`null`, ""},
		{`42`, ""},
	}

	for _, tt := range tests {
		var leg LegRef
		if err := json.Unmarshal([]byte(tt.raw), &leg); err != nil {
			t.Errorf("%s: %v", tt.raw, err)
			continue
		}
		if leg != tt.want {
			t.Errorf("%s: got %q, want %q", tt.raw, leg, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`13`, 13, true},
		{`"197.5"`, 197.5, true},
		{`"abc"`, 0, false},
		{`null`, 0, false},
		{``, 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber([]byte(tt.raw))
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseNumber(%s) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2026, 3, 20)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2026-03-20"` {
		t.Errorf("marshal = %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip = %v", back)
	}
}
