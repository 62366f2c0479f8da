package options

import (
	"testing"
	"time"

	"wheel-trader/internal/models"
)

func TestEncodeSymbol(t *testing.T) {
	tests := []struct {
		underlying string
		expiry     string
		optType    models.OptionType
		strike     float64
		want       string
	}{
		{"AAPL", "2026-03-20", models.OptionPut, 170, "AAPL  260320P00170000"},
		{"AAPL", "2026-03-20", models.OptionCall, 200, "AAPL  260320C00200000"},
		{"AAPL", "2026-03-20", models.OptionPut, 197.5, "AAPL  260320P00197500"},
		{"F", "2026-03-20", models.OptionPut, 13, "F     260320P00013000"},
		{"SOFI", "2026-04-17", models.OptionCall, 8.5, "SOFI  260417C00008500"},
		{"sofi", "2026-04-17", models.OptionCall, 2.005, "SOFI  260417C00002005"},
		{"GOOGL", "2026-01-16", models.OptionPut, 0.1, "GOOGL 260116P00000100"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := EncodeSymbolDate(tt.underlying, tt.expiry, tt.optType, tt.strike)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if len(got) != 21 {
				t.Errorf("length = %d, want 21", len(got))
			}
		})
	}
}

func TestEncodeSymbolDateRejectsBadDate(t *testing.T) {
	if _, err := EncodeSymbolDate("F", "03/20/2026", models.OptionPut, 13); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestParseSymbol(t *testing.T) {
	c, err := ParseSymbol("SOFI  260417C00008500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Underlying != "SOFI" || c.Type != models.OptionCall || c.Strike != 8.5 {
		t.Errorf("unexpected contract: %+v", c)
	}
	if c.Expiration.String() != "2026-04-17" {
		t.Errorf("expiration = %s", c.Expiration)
	}

	bad := []string{"", "SOFI", "SOFI  260417X00008500", "      260417C00008500", "SOFI  261317C00008500"}
	for _, s := range bad {
		if _, err := ParseSymbol(s); err == nil {
			t.Errorf("ParseSymbol(%q) should fail", s)
		}
		if IsOptionSymbol(s) {
			t.Errorf("IsOptionSymbol(%q) should be false", s)
		}
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	expiry := time.Date(2026, 6, 18, 0, 0, 0, 0, time.UTC)
	symbol := EncodeSymbol("AMD", expiry, models.OptionPut, 142.5)

	c, err := ParseSymbol(symbol)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Underlying != "AMD" || c.Strike != 142.5 || c.Type != models.OptionPut || !c.Expiration.Equal(expiry) {
		t.Errorf("round trip mismatch: %+v", c)
	}
}
