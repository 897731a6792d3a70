package currency

import (
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		code   string
		ok     bool
		symbol string
	}{
		{"EUR", true, "€"},
		{"usd", true, "$"},
		{" gbp ", true, "£"},
		{"XXX", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c, ok := Lookup(tt.code)
			if ok != tt.ok {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.code, ok, tt.ok)
			}
			if ok && c.Symbol != tt.symbol {
				t.Errorf("Lookup(%q).Symbol = %q, want %q", tt.code, c.Symbol, tt.symbol)
			}
		})
	}
}

func TestAll_CatalogShape(t *testing.T) {
	all := All()
	if len(all) < 120 {
		t.Fatalf("catalog has %d entries, expected the full supported set", len(all))
	}
	seen := make(map[string]bool, len(all))
	for i, c := range all {
		if len(c.Code) != 3 {
			t.Errorf("entry %d has malformed code %q", i, c.Code)
		}
		if c.Name == "" || c.Symbol == "" {
			t.Errorf("entry %s missing name or symbol", c.Code)
		}
		if seen[c.Code] {
			t.Errorf("duplicate code %s", c.Code)
		}
		seen[c.Code] = true
		if i > 0 && all[i-1].Code >= c.Code {
			t.Errorf("catalog not sorted at %s", c.Code)
		}
	}

	// Mutating the returned slice must not touch the catalog.
	all[0].Symbol = "?"
	if fresh := All(); fresh[0].Symbol == "?" {
		t.Error("All() exposes the internal catalog")
	}
}

func TestRateTable_Rate(t *testing.T) {
	table := RateTable{
		Base: "USD",
		Rates: map[string]float64{
			"EUR": 0.9,
			"JPY": 150.0,
			"BAD": 0,
			"NEG": -2,
		},
	}

	tests := []struct {
		code string
		want float64
	}{
		{"EUR", 0.9},
		{"JPY", 150.0},
		{"USD", 1.0}, // base
		{"CHF", 1.0}, // missing → identity
		{"BAD", 1.0}, // zero → identity
		{"NEG", 1.0}, // negative → identity
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := table.Rate(tt.code); got != tt.want {
				t.Errorf("Rate(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestRateTable_Convert(t *testing.T) {
	table := RateTable{
		Base:  "USD",
		Rates: map[string]float64{"EUR": 0.8, "GBP": 0.5},
	}

	// 80 EUR → USD → GBP: 80/0.8 = 100 USD, 100*0.5 = 50 GBP.
	if got := table.Convert(80, "EUR", "GBP"); got != 50 {
		t.Errorf("Convert(80, EUR, GBP) = %v, want 50", got)
	}
	// Identity conversion returns the amount untouched.
	if got := table.Convert(33.33, "EUR", "EUR"); got != 33.33 {
		t.Errorf("Convert identity = %v, want 33.33", got)
	}
	// Missing source code passes through at rate 1.0.
	if got := table.Convert(10, "XTS", "GBP"); got != 5 {
		t.Errorf("Convert(10, XTS, GBP) = %v, want 5", got)
	}
}

func TestRateStore_VersionAndIsolation(t *testing.T) {
	store := NewRateStore()
	if store.Version() != 0 {
		t.Fatalf("new store version = %d, want 0", store.Version())
	}

	// Empty store serves identity rates.
	if got := store.Table().Rate("EUR"); got != 1.0 {
		t.Fatalf("empty store Rate(EUR) = %v, want 1.0", got)
	}

	table := RateTable{
		Base:  "USD",
		AsOf:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Rates: map[string]float64{"EUR": 0.9},
	}
	store.Set(table)
	if store.Version() != 1 {
		t.Fatalf("version after Set = %d, want 1", store.Version())
	}

	// Mutating the input after Set must not affect the store.
	table.Rates["EUR"] = 5
	if got := store.Table().Rate("EUR"); got != 0.9 {
		t.Errorf("store shares rates map with caller: Rate(EUR) = %v", got)
	}

	// Mutating a returned snapshot must not affect the store either.
	snap := store.Table()
	snap.Rates["EUR"] = 7
	if got := store.Table().Rate("EUR"); got != 0.9 {
		t.Errorf("Table() exposes internal map: Rate(EUR) = %v", got)
	}

	store.Set(RateTable{Base: "USD"})
	if store.Version() != 2 {
		t.Errorf("version after second Set = %d, want 2", store.Version())
	}
}
