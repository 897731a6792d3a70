package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subtrack/internal/currency"
)

// displayCurrencyKey is the settings row holding the user's display currency.
const displayCurrencyKey = "display_currency"

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"monthly_total": s.aggregator.MonthlyTotal(),
		"currency":      s.aggregator.DisplayCurrency(),
	})
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	totals := s.aggregator.CategoryTotals()
	out := make(map[string]float64, len(totals))
	for cat, amount := range totals {
		out[string(cat)] = amount
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":   out,
		"currency": s.aggregator.DisplayCurrency(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	type slice struct {
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
	}

	chart := s.aggregator.ChartData()
	out := make([]slice, 0, len(chart))
	for _, c := range chart {
		out = append(out, slice{
			Category:   string(c.Category),
			Amount:     c.Amount,
			Percentage: c.Percentage,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chart":    out,
		"currency": s.aggregator.DisplayCurrency(),
	})
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	type currencyInfo struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	}

	all := currency.All()
	out := make([]currencyInfo, 0, len(all))
	for _, c := range all {
		out = append(out, currencyInfo{Code: c.Code, Name: c.Name, Symbol: c.Symbol})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	table := s.rates.Table()
	resp := map[string]any{
		"base":  table.Base,
		"rates": table.Rates,
	}
	if !table.AsOf.IsZero() {
		resp["as_of"] = table.AsOf.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetDisplayCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	code := strings.ToUpper(sanitizeInput(req.Currency))
	if !currency.Supported(code) {
		writeError(w, http.StatusUnprocessableEntity, "unsupported currency code")
		return
	}

	if err := s.settings.SetSetting(r.Context(), displayCurrencyKey, code); err != nil {
		slog.ErrorContext(r.Context(), "Failed to persist display currency", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.aggregator.SetDisplayCurrency(code)

	slog.InfoContext(r.Context(), "Display currency changed", "currency", code)
	writeJSON(w, http.StatusOK, map[string]string{"currency": code})
}
