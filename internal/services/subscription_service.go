// Package services orchestrates subscription operations across the SQLite
// repository, the in-memory collection and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	"subtrack/internal/storage"
)

// Publisher is the slice of the AMQP client the service needs. Tests swap in
// a recorder.
type Publisher interface {
	PublishSubscriptionEvent(ctx context.Context, id, action string, version int64) error
}

// Store is the slice of the repository the service needs.
type Store interface {
	CreateSubscription(ctx context.Context, s core.Subscription) error
	UpdateSubscription(ctx context.Context, s core.Subscription) error
	AppendPriceChange(ctx context.Context, id string, pc core.PriceChange) error
	SoftDeleteSubscription(ctx context.Context, id string, at time.Time) error
	RestoreSubscription(ctx context.Context, id string, window time.Duration, now time.Time) error
	GetSubscription(ctx context.Context, id string) (core.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
}

// SubscriptionService writes through to SQLite, keeps the in-memory
// collection current and publishes change events. Publish failures never fail
// the request; the mirror worker catches up from the pending queue.
type SubscriptionService struct {
	store      Store
	collection *core.Collection
	publisher  Publisher
	undoWindow time.Duration
	now        func() time.Time
}

func NewSubscriptionService(store Store, collection *core.Collection, publisher Publisher, undoWindow time.Duration) *SubscriptionService {
	return &SubscriptionService{
		store:      store,
		collection: collection,
		publisher:  publisher,
		undoWindow: undoWindow,
		now:        time.Now,
	}
}

// LoadFromStorage fills the collection from the database. Called once at
// startup.
func (s *SubscriptionService) LoadFromStorage(ctx context.Context) error {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	s.collection.Load(subs)
	slog.InfoContext(ctx, "Subscriptions loaded", "count", len(subs))
	return nil
}

// Create validates and persists a new subscription. The caller supplies the
// descriptive fields; ID, timestamps and the initial price-history entry are
// filled in here.
func (s *SubscriptionService) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	now := s.now().UTC()
	sub.ID = uuid.NewString()
	sub.IsActive = true
	sub.IsArchived = false
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.PriceHistory = []core.PriceChange{
		{Price: sub.Cost, ChangedAt: now, Reason: "initial price"},
	}

	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}
	s.collection.Put(sub)

	s.publish(ctx, sub.ID, amqp.ActionCreated)
	return sub, nil
}

// Update replaces the mutable fields of an existing subscription. Price
// history survives; use ChangePrice to record a new price.
func (s *SubscriptionService) Update(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	current, ok := s.collection.Get(sub.ID)
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}

	sub.Cost = current.Cost
	sub.PriceHistory = current.PriceHistory
	sub.CreatedAt = current.CreatedAt
	sub.UpdatedAt = s.now().UTC()

	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}

	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	s.collection.Put(sub)

	s.publish(ctx, sub.ID, amqp.ActionUpdated)
	return sub, nil
}

// Archive hides the subscription from totals without deleting it.
func (s *SubscriptionService) Archive(ctx context.Context, id string) (core.Subscription, error) {
	return s.setFlags(ctx, id, func(sub *core.Subscription) {
		sub.IsArchived = true
	})
}

// Activate brings a subscription back into the counted set.
func (s *SubscriptionService) Activate(ctx context.Context, id string) (core.Subscription, error) {
	return s.setFlags(ctx, id, func(sub *core.Subscription) {
		sub.IsActive = true
		sub.IsArchived = false
	})
}

// Deactivate pauses a subscription without archiving it.
func (s *SubscriptionService) Deactivate(ctx context.Context, id string) (core.Subscription, error) {
	return s.setFlags(ctx, id, func(sub *core.Subscription) {
		sub.IsActive = false
	})
}

func (s *SubscriptionService) setFlags(ctx context.Context, id string, mutate func(*core.Subscription)) (core.Subscription, error) {
	sub, ok := s.collection.Get(id)
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}

	mutate(&sub)
	sub.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}
	s.collection.Put(sub)

	s.publish(ctx, id, amqp.ActionUpdated)
	return sub, nil
}

// ChangePrice appends a price-history entry and moves the current cost.
func (s *SubscriptionService) ChangePrice(ctx context.Context, id string, newPrice float64, reason string) (core.Subscription, error) {
	sub, ok := s.collection.Get(id)
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}
	if newPrice < 0 {
		return core.Subscription{}, core.ErrNegativeCost
	}

	previous := sub.Cost
	change := core.PriceChange{
		Price:         newPrice,
		PreviousPrice: &previous,
		ChangedAt:     s.now().UTC(),
		Reason:        reason,
	}

	if err := s.store.AppendPriceChange(ctx, id, change); err != nil {
		return core.Subscription{}, fmt.Errorf("record price change: %w", err)
	}

	sub.Cost = newPrice
	sub.UpdatedAt = change.ChangedAt
	sub.PriceHistory = append(sub.PriceHistory, change)
	s.collection.Put(sub)

	s.publish(ctx, id, amqp.ActionUpdated)
	return sub, nil
}

// Delete soft-deletes the subscription. It can be restored within the undo
// window.
func (s *SubscriptionService) Delete(ctx context.Context, id string) error {
	if err := s.store.SoftDeleteSubscription(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.collection.Remove(id)

	s.publish(ctx, id, amqp.ActionDeleted)
	return nil
}

// Restore undoes a recent soft delete.
func (s *SubscriptionService) Restore(ctx context.Context, id string) (core.Subscription, error) {
	if err := s.store.RestoreSubscription(ctx, id, s.undoWindow, s.now().UTC()); err != nil {
		return core.Subscription{}, err
	}

	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("reload restored subscription: %w", err)
	}
	s.collection.Put(sub)

	s.publish(ctx, id, amqp.ActionUpdated)
	return sub, nil
}

// Get returns one subscription from the in-memory collection.
func (s *SubscriptionService) Get(id string) (core.Subscription, bool) {
	return s.collection.Get(id)
}

// List returns all subscriptions, sorted by name.
func (s *SubscriptionService) List() []core.Subscription {
	return s.collection.Snapshot()
}

// Version returns the collection's mutation counter. Callers use it to
// key derived data that must be recomputed after any write.
func (s *SubscriptionService) Version() uint64 {
	return s.collection.Version()
}

func (s *SubscriptionService) publish(ctx context.Context, id, action string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", "id", id, "action", action)
		return
	}
	if err := s.publisher.PublishSubscriptionEvent(ctx, id, action, int64(s.collection.Version())); err != nil {
		slog.ErrorContext(ctx, "Failed to publish subscription event",
			"id", id, "action", action, "error", err)
		// Request still succeeds; the mirror worker sweeps pending rows.
	}
}
