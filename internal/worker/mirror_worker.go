// Package worker keeps the spreadsheet mirror in step with SQLite.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/mirror"
	"subtrack/internal/storage"
)

// MirrorStore is the slice of the repository the mirror worker needs.
type MirrorStore interface {
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
	IsDeleted(ctx context.Context, id string) (bool, error)
	ListPendingMirror(ctx context.Context, limit int) ([]core.Subscription, error)
	MarkMirrored(ctx context.Context, id string) error
	MarkMirrorError(ctx context.Context, id string) error
}

// MirrorWorker consumes subscription events and writes rows to the mirror.
// The pending queue in SQLite is the source of truth; AMQP only tells the
// worker when to look.
type MirrorWorker struct {
	store     MirrorStore
	writer    mirror.Writer
	deleter   mirror.Deleter
	batchSize int
}

func NewMirrorWorker(store MirrorStore, writer mirror.Writer, deleter mirror.Deleter, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		store:     store,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleEvent processes one subscription event from AMQP.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.SubscriptionEventMessage) error {
	slog.InfoContext(ctx, "Processing subscription event",
		"id", msg.ID,
		"action", msg.Action,
		"version", msg.Version)

	if msg.Action == amqp.ActionDeleted {
		return w.removeRow(ctx, msg.ID)
	}
	return w.mirrorSubscription(ctx, msg.ID)
}

// ProcessPending sweeps subscriptions whose mirror write has not happened
// yet. This is the backup path for lost AMQP messages.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	return w.processPendingBatch(ctx, w.batchSize)
}

// StartupCheck runs a larger sweep when the worker boots, recovering from
// downtime.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.ListPendingMirror(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending subscriptions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending mirror writes found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending mirror writes on startup, processing",
		"count", len(pending))

	synced, failed := 0, 0
	for _, sub := range pending {
		if err := w.mirrorSubscription(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror subscription during startup",
				"id", sub.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup mirror check completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *MirrorWorker) processPendingBatch(ctx context.Context, limit int) error {
	pending, err := w.store.ListPendingMirror(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending subscriptions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending mirror writes", "count", len(pending))
	for _, sub := range pending {
		if err := w.mirrorSubscription(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror subscription",
				"id", sub.ID, "error", err)
		}
	}
	return nil
}

// mirrorSubscription fetches the current row from SQLite and writes or
// removes the mirror row accordingly. Soft-deleted subscriptions lose their
// row.
func (w *MirrorWorker) mirrorSubscription(ctx context.Context, id string) error {
	sub, err := w.store.GetSubscription(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Row is gone entirely; nothing left to mirror.
		return w.removeRow(ctx, id)
	}
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("get subscription from storage: %w", err)
	}

	deleted, err := w.store.IsDeleted(ctx, id)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("check deleted state: %w", err)
	}
	if deleted {
		return w.removeRow(ctx, id)
	}

	ref, err := w.writer.Upsert(ctx, sub)
	if err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("upsert mirror row: %w", err)
	}

	if err := w.store.MarkMirrored(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", id, "error", err)
		// The write itself succeeded; the sweep will retry the mark.
	}

	slog.InfoContext(ctx, "Subscription mirrored",
		"id", id,
		"name", sub.Name,
		"ref", ref)
	return nil
}

func (w *MirrorWorker) removeRow(ctx context.Context, id string) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No mirror deleter configured, skipping row removal", "id", id)
		return nil
	}

	if err := w.deleter.Delete(ctx, id); err != nil {
		w.markError(ctx, id)
		return fmt.Errorf("delete mirror row: %w", err)
	}

	if err := w.store.MarkMirrored(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed to mark deletion as mirrored", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Mirror row removed", "id", id)
	return nil
}

func (w *MirrorWorker) markError(ctx context.Context, id string) {
	if err := w.store.MarkMirrorError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", err)
	}
}
