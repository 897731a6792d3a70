package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/recurrence"
)

// RenewalStore is the slice of the repository the renewal worker needs.
type RenewalStore interface {
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
	LastRenewalNotice(ctx context.Context, id string) (time.Time, bool, error)
	MarkRenewalNotified(ctx context.Context, id string, at time.Time) error
}

// RenewalPublisher publishes renewal-due notifications.
type RenewalPublisher interface {
	PublishRenewalDue(ctx context.Context, msg *amqp.RenewalDueMessage) error
}

// RenewalProcessor scans subscriptions once per cron tick and publishes a
// notification for each one that bills today. The renewal_notices table keeps
// the worker idempotent across restarts and overlapping ticks.
type RenewalProcessor struct {
	store     RenewalStore
	publisher RenewalPublisher
}

func NewRenewalProcessor(store RenewalStore, publisher RenewalPublisher) *RenewalProcessor {
	return &RenewalProcessor{
		store:     store,
		publisher: publisher,
	}
}

// ProcessDueRenewals publishes a message for every active, non-archived
// subscription whose billing cadence lands on now's calendar day. Individual
// failures are logged and skipped so one bad row never stalls the batch.
func (p *RenewalProcessor) ProcessDueRenewals(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	subs, err := p.store.ListSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Processing renewals",
		"total", len(subs),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, sub := range subs {
		if !sub.Counted() {
			continue
		}
		if !recurrence.OccursOnDate(sub.StartDate, sub.Cycle, now) {
			continue
		}

		last, ok, err := p.store.LastRenewalNotice(ctx, sub.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check renewal notice",
				"id", sub.ID, "error", err)
			continue
		}
		if ok && sameDay(last, now) {
			continue
		}

		due := dateOnly(now)
		next := recurrence.NextBillingDateFrom(sub.StartDate, sub.Cycle, due)
		msg := amqp.NewRenewalDueMessage(sub.ID, sub.Name, sub.Cost, sub.Currency, due, next)
		if err := p.publisher.PublishRenewalDue(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish renewal notification",
				"id", sub.ID, "name", sub.Name, "error", err)
			continue
		}

		if err := p.store.MarkRenewalNotified(ctx, sub.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to record renewal notice",
				"id", sub.ID, "error", err)
			// Message already went out; worst case the next tick repeats it.
		}

		processed++
		slog.InfoContext(ctx, "Renewal notification sent",
			"id", sub.ID,
			"name", sub.Name,
			"amount", sub.Cost,
			"currency", sub.Currency)
	}

	slog.InfoContext(ctx, "Renewal processing complete",
		"notified", processed,
		"total_checked", len(subs))
	return processed, nil
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
