package options

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"wheel-trader/internal/models"
)

func testExpiration(date string, dte int, strikes ...float64) models.Expiration {
	d, _ := models.ParseDate(date)
	exp := models.Expiration{Date: d, DaysToExpiration: dte}
	for _, s := range strikes {
		exp.Strikes = append(exp.Strikes, models.Strike{
			Price:              s,
			PutSymbol:          EncodeSymbol("F", d.Time, models.OptionPut, s),
			CallSymbol:         EncodeSymbol("F", d.Time, models.OptionCall, s),
			PutStreamerSymbol:  fmt.Sprintf(".F%sP%g", d.Format("060102"), s),
			CallStreamerSymbol: fmt.Sprintf(".F%sC%g", d.Format("060102"), s),
		})
	}
	return exp
}

func cspChain() models.Chain {
	return models.Chain{
		Underlying: "F",
		Expirations: []models.Expiration{
			testExpiration("2026-03-20", 30, 10, 11, 12, 13, 14, 15),
			testExpiration("2026-02-25", 5, 10, 11, 12, 13, 14, 15),
		},
	}
}

func strikes(c []models.OptionCandidate) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = c[i].Strike
	}
	return out
}

func TestFindCSP(t *testing.T) {
	f := DefaultFinder()

	tests := []struct {
		name    string
		price   float64
		maxCash float64
		want    []float64
	}{
		{"budget caps strikes", 14, 1200, []float64{12, 11, 10}},
		{"price caps strikes", 11, 5000, []float64{10}},
		{"budget below every strike", 14, 500, []float64{}},
		{"all otm strikes", 20, 5000, []float64{15, 14, 13, 12, 11, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.FindCSP(cspChain(), tt.price, tt.maxCash)
			if !reflect.DeepEqual(strikes(got), tt.want) {
				t.Errorf("strikes = %v, want %v", strikes(got), tt.want)
			}
			for _, c := range got {
				if c.DaysToExpiration != 30 {
					t.Errorf("out-of-window expiration leaked: %+v", c)
				}
				if c.CashRequired != c.Strike*100 {
					t.Errorf("cash = %v for strike %v", c.CashRequired, c.Strike)
				}
				if c.Type != models.OptionPut || c.Underlying != "F" || c.StreamerSymbol == "" {
					t.Errorf("incomplete candidate: %+v", c)
				}
			}
		})
	}
}

func TestFindCSPCandidateFields(t *testing.T) {
	got := DefaultFinder().FindCSP(cspChain(), 14, 1200)
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	best := got[0]
	if best.OptionSymbol != "F     260320P00012000" {
		t.Errorf("symbol = %q", best.OptionSymbol)
	}
	if best.ExpirationDate.String() != "2026-03-20" || best.CashRequired != 1200 {
		t.Errorf("unexpected best: %+v", best)
	}
}

func TestFindCSPSkipsMissingPutLeg(t *testing.T) {
	chain := cspChain()
	chain.Expirations[0].Strikes[2].PutSymbol = ""

	got := DefaultFinder().FindCSP(chain, 14, 5000)
	for _, c := range got {
		if c.Strike == 12 {
			t.Error("strike without put leg should be skipped")
		}
	}
}

func TestFindCC(t *testing.T) {
	chain := models.Chain{
		Underlying:  "F",
		Expirations: []models.Expiration{testExpiration("2026-03-20", 30, 13, 14, 15, 16)},
	}
	f := DefaultFinder()

	if got := f.FindCC(chain, 13.5, 50); len(got) != 0 {
		t.Errorf("50 shares should yield nothing, got %v", strikes(got))
	}

	got := f.FindCC(chain, 13.5, 300)
	if !reflect.DeepEqual(strikes(got), []float64{14, 15, 16}) {
		t.Errorf("strikes = %v", strikes(got))
	}
	for _, c := range got {
		if c.Contracts != 3 || c.Type != models.OptionCall {
			t.Errorf("unexpected candidate: %+v", c)
		}
	}
}

func TestFinderLimitAndTies(t *testing.T) {
	chain := models.Chain{
		Underlying: "F",
		Expirations: []models.Expiration{
			testExpiration("2026-04-17", 42, 10, 11),
			testExpiration("2026-03-20", 21, 10, 11),
		},
	}

	got := NewFinder(20, 45, 3).FindCSP(chain, 20, 5000)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].Strike != 11 || got[0].DaysToExpiration != 21 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Strike != 11 || got[1].DaysToExpiration != 42 {
		t.Errorf("second = %+v", got[1])
	}
}

func TestEmptyChains(t *testing.T) {
	f := DefaultFinder()
	if got := f.FindCSP(models.Chain{}, 14, 5000); len(got) != 0 {
		t.Errorf("empty chain yielded %v", got)
	}
	if got := f.FindCC(models.Chain{}, 14, 500); len(got) != 0 {
		t.Errorf("empty chain yielded %v", got)
	}
	if got := Expirations(nil, time.Now()); len(got) != 0 {
		t.Errorf("nil response yielded %v", got)
	}
}

func TestExpirationsEnvelopes(t *testing.T) {
	now := time.Date(2026, 2, 18, 0, 0, 0, 0, time.UTC)

	nested := `{"items": [{"underlying-symbol": "F", "expirations": [
		{"expiration-date": "2026-03-20", "days-to-expiration": 30, "strikes": [
			{"strike-price": "13.0", "put": "F     260320P00013000", "call": {"symbol": "F     260320C00013000"}, "put-streamer-symbol": ".F260320P13"},
			{"strike-price": "n/a", "put": "F     260320P00014000"},
			{"strike-price": 14.5, "put": null}
		]}
	]}]}`
	bare := `{"expirations": [{"expiration-date": "2026-03-20", "strikes": [{"strike-price": 13, "put": "F     260320P00013000"}]}]}`

	var resp models.ChainResponse
	if err := json.Unmarshal([]byte(nested), &resp); err != nil {
		t.Fatalf("nested: %v", err)
	}
	exps := Expirations(&resp, now)
	if len(exps) != 1 || len(exps[0].Strikes) != 2 {
		t.Fatalf("unexpected expirations: %+v", exps)
	}
	s := exps[0].Strikes[0]
	if s.Price != 13 || s.PutSymbol != "F     260320P00013000" || s.CallSymbol != "F     260320C00013000" || s.PutStreamerSymbol != ".F260320P13" {
		t.Errorf("unexpected strike: %+v", s)
	}
	if exps[0].Strikes[1].PutSymbol != "" {
		t.Errorf("null put should be empty: %+v", exps[0].Strikes[1])
	}

	var bareResp models.ChainResponse
	if err := json.Unmarshal([]byte(bare), &bareResp); err != nil {
		t.Fatalf("bare: %v", err)
	}
	exps = Expirations(&bareResp, now)
	if len(exps) != 1 {
		t.Fatalf("expected one expiration, got %d", len(exps))
	}
	if exps[0].DaysToExpiration != 30 {
		t.Errorf("computed dte = %d, want 30", exps[0].DaysToExpiration)
	}
}

func TestMiddleStrike(t *testing.T) {
	chain := models.Chain{Expirations: []models.Expiration{
		testExpiration("2026-04-17", 58, 50, 60),
		testExpiration("2026-03-20", 30, 15, 10, 14, 11, 12),
	}}
	got, ok := MiddleStrike(chain)
	if !ok || got != 12 {
		t.Errorf("MiddleStrike = %v, %v", got, ok)
	}
	if _, ok := MiddleStrike(models.Chain{}); ok {
		t.Error("empty chain should have no middle strike")
	}
}
