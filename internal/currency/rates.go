package currency

import (
	"sync"
	"time"
)

// RateTable is a read-only snapshot of exchange rates relative to Base.
// It is supplied by the rate fetcher; the aggregation layer never mutates it.
type RateTable struct {
	Base  string             `json:"base"`
	AsOf  time.Time          `json:"as_of"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the rate for a code relative to the table base.
//
// A missing or non-positive entry degrades to the identity rate 1.0 so the
// caller sees unconverted amounts rather than an error: "no exchange data"
// must never break a totals read. The base currency itself is always 1.0.
func (t RateTable) Rate(code string) float64 {
	if code == t.Base {
		return 1.0
	}
	r, ok := t.Rates[code]
	if !ok || r <= 0 {
		return 1.0
	}
	return r
}

// Convert moves an amount from one currency to another, always routing
// through the table base. Identical codes skip conversion entirely so
// identity conversions carry no float rounding noise.
func (t RateTable) Convert(amount float64, from, to string) float64 {
	if from == to {
		return amount
	}
	return amount / t.Rate(from) * t.Rate(to)
}

// Clone returns a deep copy of the table.
func (t RateTable) Clone() RateTable {
	out := RateTable{Base: t.Base, AsOf: t.AsOf}
	if t.Rates != nil {
		out.Rates = make(map[string]float64, len(t.Rates))
		for k, v := range t.Rates {
			out.Rates[k] = v
		}
	}
	return out
}

// RateStore owns the current rate table and a version counter bumped on
// every refresh, mirroring the subscription collection's invalidation
// signal. An empty store serves an empty table, which degrades every lookup
// to the identity rate.
type RateStore struct {
	mu      sync.RWMutex
	version uint64
	table   RateTable
}

func NewRateStore() *RateStore {
	return &RateStore{}
}

// Set replaces the current table and bumps the version.
func (s *RateStore) Set(t RateTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t.Clone()
	s.version++
}

// Table returns a copy of the current snapshot.
func (s *RateStore) Table() RateTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

// Version returns the refresh counter.
func (s *RateStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
