// Package aggregate normalizes per-subscription costs into display-currency
// monthly figures: the grand total, per-category totals, and the chart
// breakdown. Results are cached against the version counters of both inputs
// so a read after any mutation always recomputes, and a read after no
// mutation never does.
package aggregate

import (
	"sort"
	"sync"

	"subtrack/internal/core"
	"subtrack/internal/currency"
	"subtrack/internal/recurrence"
)

// ChartSlice is one category's share of the monthly total.
type ChartSlice struct {
	Category   core.Category `json:"category"`
	Amount     float64       `json:"amount"`
	Percentage float64       `json:"percentage"`
}

// Result is the cached output triple. The three values are always computed
// and invalidated together.
type Result struct {
	MonthlyTotal   float64
	CategoryTotals map[core.Category]float64
	Chart          []ChartSlice
}

// Compute runs the full pipeline over a snapshot. It is total: empty input,
// unknown currency codes and zero rates all yield defined numbers, never an
// error.
func Compute(subs []core.Subscription, displayCurrency string, table currency.RateTable) Result {
	res := Result{CategoryTotals: make(map[core.Category]float64)}

	for _, s := range subs {
		if !s.Counted() {
			continue
		}
		monthly := s.Cost * recurrence.MonthlyEquivalent(s.Cycle)
		converted := table.Convert(monthly, s.Currency, displayCurrency)
		res.MonthlyTotal += converted
		res.CategoryTotals[s.Category] += converted
	}

	res.Chart = buildChart(res.CategoryTotals, res.MonthlyTotal)
	return res
}

// buildChart derives percentage slices from the category totals, sorted
// descending by amount with category declaration order as the tie-break.
// A zero grand total short-circuits every percentage to 0.
func buildChart(totals map[core.Category]float64, grandTotal float64) []ChartSlice {
	chart := make([]ChartSlice, 0, len(totals))
	for cat, amount := range totals {
		pct := 0.0
		if grandTotal != 0 {
			pct = amount / grandTotal * 100
		}
		chart = append(chart, ChartSlice{Category: cat, Amount: amount, Percentage: pct})
	}
	sort.Slice(chart, func(i, j int) bool {
		if chart[i].Amount != chart[j].Amount {
			return chart[i].Amount > chart[j].Amount
		}
		return chart[i].Category.Index() < chart[j].Category.Index()
	})
	return chart
}

// Aggregator serves cached aggregation results over a live subscription
// collection and rate store.
//
// The dirty check is version-based: the cache key is the triple
// (collection version, rate store version, display currency) observed when
// the cached result was computed. Mutations never touch the aggregator;
// they bump their owner's version and the next read notices.
type Aggregator struct {
	subs  *core.Collection
	rates *currency.RateStore

	mu           sync.Mutex
	display      string
	cached       Result
	haveCache    bool
	cachedSubsV  uint64
	cachedRatesV uint64
}

func New(subs *core.Collection, rates *currency.RateStore, displayCurrency string) *Aggregator {
	return &Aggregator{subs: subs, rates: rates, display: displayCurrency}
}

// SetDisplayCurrency switches the currency totals are expressed in. A change
// drops the cached triple.
func (a *Aggregator) SetDisplayCurrency(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if code == a.display {
		return
	}
	a.display = code
	a.haveCache = false
}

// DisplayCurrency returns the current display currency code.
func (a *Aggregator) DisplayCurrency() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.display
}

// MonthlyTotal returns the cached total monthly spend in the display
// currency.
func (a *Aggregator) MonthlyTotal() float64 {
	return a.result().MonthlyTotal
}

// CategoryTotals returns a copy of the per-category monthly totals.
// Categories with no counted subscriptions are absent, not zero.
func (a *Aggregator) CategoryTotals() map[core.Category]float64 {
	res := a.result()
	out := make(map[core.Category]float64, len(res.CategoryTotals))
	for k, v := range res.CategoryTotals {
		out[k] = v
	}
	return out
}

// ChartData returns a copy of the sorted chart breakdown.
func (a *Aggregator) ChartData() []ChartSlice {
	res := a.result()
	out := make([]ChartSlice, len(res.Chart))
	copy(out, res.Chart)
	return out
}

// result returns the cached triple, recomputing it first when either input
// version moved or the display currency changed since the last computation.
// Reading the versions and swapping the cache happen under one mutex so the
// triple can never tear.
func (a *Aggregator) result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	subsV := a.subs.Version()
	ratesV := a.rates.Version()
	if a.haveCache && a.cachedSubsV == subsV && a.cachedRatesV == ratesV {
		return a.cached
	}

	a.cached = Compute(a.subs.Snapshot(), a.display, a.rates.Table())
	a.cachedSubsV = subsV
	a.cachedRatesV = ratesV
	a.haveCache = true
	return a.cached
}
