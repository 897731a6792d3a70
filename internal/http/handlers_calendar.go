package http

import (
	"fmt"
	"net/http"
	"time"

	"subtrack/internal/recurrence"
)

type calendarEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency"`
}

type calendarDay struct {
	Day           int             `json:"day"`
	Subscriptions []calendarEntry `json:"subscriptions"`
}

type calendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []calendarDay `json:"days"`
}

// handleCalendar returns, for every day of the requested month, the
// subscriptions that bill on that day. Days without billings are omitted.
// Responses are cached per month; the key carries the collection version
// so any write invalidates them.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		writeError(w, http.StatusUnprocessableEntity, "month must be between 1 and 12")
		return
	}
	if year < 1 {
		writeError(w, http.StatusUnprocessableEntity, "invalid year")
		return
	}

	cacheKey := fmt.Sprintf("%d:%04d-%02d", s.subscriptions.Version(), year, month)
	if cached, ok := s.calendarCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	subs := s.subscriptions.List()
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	var days []calendarDay
	for day := 1; day <= lastDay; day++ {
		var entries []calendarEntry
		for _, sub := range subs {
			// Archived subscriptions still bill; only inactive ones skip
			// the calendar. Spend totals are where archived is excluded.
			if !sub.IsActive {
				continue
			}
			if !recurrence.OccursOn(sub.StartDate, sub.Cycle, day, month, year) {
				continue
			}
			entries = append(entries, calendarEntry{
				ID:       sub.ID,
				Name:     sub.Name,
				Cost:     sub.Cost,
				Currency: sub.Currency,
			})
		}
		if len(entries) > 0 {
			days = append(days, calendarDay{Day: day, Subscriptions: entries})
		}
	}

	resp := calendarResponse{Year: year, Month: month, Days: days}
	s.calendarCache.Set(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}
