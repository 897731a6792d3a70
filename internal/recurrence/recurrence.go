// Package recurrence implements the billing date arithmetic shared by the
// API server, the calendar endpoints and the renewal worker. Everything here
// is a pure function over (start date, billing cycle); there is exactly one
// implementation of this logic in the codebase.
package recurrence

import (
	"time"

	"subtrack/internal/core"
)

// monthlyFactors normalizes each cadence to an average per-month multiplier.
// The weekly factor 4.33 is the conventional average-weeks-per-month
// approximation, kept as a literal constant.
var monthlyFactors = map[core.BillingCycle]float64{
	core.Weekly:     4.33,
	core.Monthly:    1.0,
	core.Quarterly:  1.0 / 3.0,
	core.SemiAnnual: 1.0 / 6.0,
	core.Annual:     1.0 / 12.0,
}

// monthSteps is the calendar step, in months, for month-anchored cadences.
var monthSteps = map[core.BillingCycle]int{
	core.Monthly:    1,
	core.Quarterly:  3,
	core.SemiAnnual: 6,
	core.Annual:     12,
}

// MonthlyEquivalent returns the factor that converts one cadence charge into
// an average per-month amount. Unknown cycles return 0.
func MonthlyEquivalent(cycle core.BillingCycle) float64 {
	return monthlyFactors[cycle]
}

// NextBillingDate returns the start date plus exactly one cadence step.
//
// It is anchored on the start date, not on "now": for a subscription started
// long ago the result can be in the past. That matches the shipped behavior
// the rest of the system is built around; NextBillingDateFrom is the
// rolled-forward variant for callers that need a future date.
func NextBillingDate(start time.Time, cycle core.BillingCycle) time.Time {
	switch cycle {
	case core.Weekly:
		return start.AddDate(0, 0, 7)
	case core.Monthly, core.Quarterly, core.SemiAnnual, core.Annual:
		return addMonthsClamped(start, monthSteps[cycle])
	default:
		return start
	}
}

// NextBillingDateFrom returns the first occurrence strictly after ref,
// stepping whole cadence multiples from the start date so the day-of-month
// anchor never drifts. If ref is before start, the first renewal
// (start + one step) is returned.
func NextBillingDateFrom(start time.Time, cycle core.BillingCycle, ref time.Time) time.Time {
	next := NextBillingDate(start, cycle)
	for n := 2; !next.After(ref); n++ {
		switch cycle {
		case core.Weekly:
			next = start.AddDate(0, 0, 7*n)
		case core.Monthly, core.Quarterly, core.SemiAnnual, core.Annual:
			next = addMonthsClamped(start, monthSteps[cycle]*n)
		default:
			return next
		}
	}
	return next
}

// OccursOn reports whether a subscription with the given anchor and cycle
// bills on the given calendar day.
//
// Per-cycle policy:
//   - monthly: day of month matches the anchor's day; no end-of-month
//     clamping, so an anchor on the 31st never matches in February
//   - weekly: weekday matches the anchor's weekday
//   - annual: month and day match the anchor's
//   - quarterly/semiannual: day matches and the month distance from the
//     anchor is an exact multiple of 3 or 6
//
// Days before the anchor date never match. Active/archived state is not
// consulted; callers filter by it.
func OccursOn(start time.Time, cycle core.BillingCycle, day, month, year int) bool {
	if month < 1 || month > 12 {
		return false
	}
	if day < 1 || day > daysInMonth(year, time.Month(month)) {
		return false
	}

	startY, startM, startD := start.Date()
	target := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	anchor := time.Date(startY, startM, startD, 0, 0, 0, 0, time.UTC)
	if target.Before(anchor) {
		return false
	}

	switch cycle {
	case core.Weekly:
		return target.Weekday() == start.Weekday()
	case core.Monthly:
		return day == startD
	case core.Annual:
		return time.Month(month) == startM && day == startD
	case core.Quarterly, core.SemiAnnual:
		if day != startD {
			return false
		}
		delta := (month - int(startM) + 12) % 12
		return delta%monthSteps[cycle] == 0
	default:
		return false
	}
}

// OccursOnDate is OccursOn for a time.Time target.
func OccursOnDate(start time.Time, cycle core.BillingCycle, target time.Time) bool {
	y, m, d := target.Date()
	return OccursOn(start, cycle, d, int(m), y)
}

// addMonthsClamped adds n calendar months, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 29 in a leap year). Plain
// AddDate would overflow into the following month instead.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	total := int(m) - 1 + n
	year := y + total/12
	month := time.Month(total%12 + 1)
	if total < 0 {
		// Go's integer division truncates toward zero; renormalize for
		// negative month offsets.
		year = y + (total-11)/12
		month = time.Month((total%12+12)%12 + 1)
	}

	if last := daysInMonth(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
