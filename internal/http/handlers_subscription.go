package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/recurrence"
	"subtrack/internal/storage"
)

type subscriptionRequest struct {
	Name         string   `json:"name"`
	Cost         float64  `json:"cost"`
	Currency     string   `json:"currency"`
	Cycle        string   `json:"cycle"`
	StartDate    string   `json:"start_date"`
	Category     string   `json:"category"`
	IsTrial      bool     `json:"is_trial"`
	TrialEndDate string   `json:"trial_end_date,omitempty"`
	SharedWith   []string `json:"shared_with,omitempty"`
}

type priceChangeResponse struct {
	Price         float64  `json:"price"`
	PreviousPrice *float64 `json:"previous_price,omitempty"`
	ChangedAt     string   `json:"changed_at"`
	Reason        string   `json:"reason,omitempty"`
}

type subscriptionResponse struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Cost              float64               `json:"cost"`
	Currency          string                `json:"currency"`
	Cycle             string                `json:"cycle"`
	StartDate         string                `json:"start_date"`
	Category          string                `json:"category"`
	IsActive          bool                  `json:"is_active"`
	IsArchived        bool                  `json:"is_archived"`
	IsTrial           bool                  `json:"is_trial"`
	TrialEndDate      string                `json:"trial_end_date,omitempty"`
	NextBillingDate   string                `json:"next_billing_date"`
	MonthlyEquivalent float64               `json:"monthly_equivalent"`
	PriceHistory      []priceChangeResponse `json:"price_history,omitempty"`
	SharedWith        []string              `json:"shared_with,omitempty"`
	CreatedAt         string                `json:"created_at"`
	UpdatedAt         string                `json:"updated_at"`
}

func toResponse(sub core.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                sub.ID,
		Name:              sub.Name,
		Cost:              sub.Cost,
		Currency:          sub.Currency,
		Cycle:             string(sub.Cycle),
		StartDate:         sub.StartDate.Format("2006-01-02"),
		Category:          string(sub.Category),
		IsActive:          sub.IsActive,
		IsArchived:        sub.IsArchived,
		IsTrial:           sub.IsTrial,
		NextBillingDate:   recurrence.NextBillingDate(sub.StartDate, sub.Cycle).Format("2006-01-02"),
		MonthlyEquivalent: sub.Cost * recurrence.MonthlyEquivalent(sub.Cycle),
		CreatedAt:         sub.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         sub.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if sub.TrialEndDate != nil {
		resp.TrialEndDate = sub.TrialEndDate.Format("2006-01-02")
	}
	for _, pc := range sub.PriceHistory {
		resp.PriceHistory = append(resp.PriceHistory, priceChangeResponse{
			Price:         pc.Price,
			PreviousPrice: pc.PreviousPrice,
			ChangedAt:     pc.ChangedAt.UTC().Format(time.RFC3339),
			Reason:        pc.Reason,
		})
	}
	for _, m := range sub.SharedWith {
		resp.SharedWith = append(resp.SharedWith, m.Name)
	}
	return resp
}

func (req subscriptionRequest) toDomain() (core.Subscription, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return core.Subscription{}, errors.New("start_date must be YYYY-MM-DD")
	}

	sub := core.Subscription{
		Name:      sanitizeInput(req.Name),
		Cost:      req.Cost,
		Currency:  sanitizeInput(req.Currency),
		Cycle:     core.BillingCycle(req.Cycle),
		StartDate: startDate,
		Category:  core.Category(req.Category),
		IsTrial:   req.IsTrial,
	}
	if req.TrialEndDate != "" {
		trialEnd, err := time.Parse("2006-01-02", req.TrialEndDate)
		if err != nil {
			return core.Subscription{}, errors.New("trial_end_date must be YYYY-MM-DD")
		}
		sub.TrialEndDate = &trialEnd
	}
	for _, name := range req.SharedWith {
		name = sanitizeInput(name)
		if name == "" {
			continue
		}
		sub.SharedWith = append(sub.SharedWith, core.Member{Name: name})
	}
	return sub, nil
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.subscriptions.List()
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.subscriptions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.subscriptions.Create(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err, "create subscription")
		return
	}

	slog.InfoContext(r.Context(), "Subscription created",
		"id", created.ID,
		"name", created.Name,
		"cost", created.Cost,
		"currency", created.Currency)
	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sub.ID = r.PathValue("id")

	current, ok := s.subscriptions.Get(sub.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	// Cost changes go through the price endpoint so history is recorded.
	// An omitted cost (zero) or the current cost echoed back is accepted.
	if req.Cost != 0 && req.Cost != current.Cost {
		writeError(w, http.StatusUnprocessableEntity,
			"cost cannot be changed here; use POST /api/subscriptions/{id}/price")
		return
	}
	sub.IsActive = current.IsActive
	sub.IsArchived = current.IsArchived

	updated, err := s.subscriptions.Update(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err, "update subscription")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.subscriptions.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Restore(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "restore subscription")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) handleArchiveSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "archive subscription")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) handleActivateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "activate subscription")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) handleDeactivateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "deactivate subscription")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price  float64 `json:"price"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sub, err := s.subscriptions.ChangePrice(r.Context(), r.PathValue("id"), req.Price, sanitizeInput(req.Reason))
	if err != nil {
		s.writeServiceError(w, r, err, "change price")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(sub))
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "subscription not found")
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNegativeCost),
		errors.Is(err, core.ErrEmptyCurrency),
		errors.Is(err, core.ErrInvalidCycle),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrZeroStartDate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "operation", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
