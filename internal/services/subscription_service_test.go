package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/storage"
)

// fakeStore keeps subscriptions in a map and mimics the repository's
// not-found and soft-delete behavior.
type fakeStore struct {
	subs    map[string]core.Subscription
	deleted map[string]time.Time
	notices map[string]time.Time
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:    make(map[string]core.Subscription),
		deleted: make(map[string]time.Time),
		notices: make(map[string]time.Time),
	}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) CreateSubscription(_ context.Context, s core.Subscription) error {
	if f.failAll {
		return errStoreDown
	}
	f.subs[s.ID] = s
	return nil
}

func (f *fakeStore) UpdateSubscription(_ context.Context, s core.Subscription) error {
	if f.failAll {
		return errStoreDown
	}
	if _, ok := f.subs[s.ID]; !ok {
		return storage.ErrNotFound
	}
	f.subs[s.ID] = s
	return nil
}

func (f *fakeStore) AppendPriceChange(_ context.Context, id string, pc core.PriceChange) error {
	if f.failAll {
		return errStoreDown
	}
	s, ok := f.subs[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.Cost = pc.Price
	s.PriceHistory = append(s.PriceHistory, pc)
	f.subs[id] = s
	return nil
}

func (f *fakeStore) SoftDeleteSubscription(_ context.Context, id string, at time.Time) error {
	if _, ok := f.subs[id]; !ok {
		return storage.ErrNotFound
	}
	f.deleted[id] = at
	return nil
}

func (f *fakeStore) RestoreSubscription(_ context.Context, id string, window time.Duration, now time.Time) error {
	at, ok := f.deleted[id]
	if !ok || at.Before(now.Add(-window)) {
		return storage.ErrNotFound
	}
	delete(f.deleted, id)
	return nil
}

func (f *fakeStore) GetSubscription(_ context.Context, id string) (core.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return core.Subscription{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) ListSubscriptions(_ context.Context) ([]core.Subscription, error) {
	var out []core.Subscription
	for id, s := range f.subs {
		if _, gone := f.deleted[id]; gone {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) LastRenewalNotice(_ context.Context, id string) (time.Time, bool, error) {
	at, ok := f.notices[id]
	return at, ok, nil
}

func (f *fakeStore) MarkRenewalNotified(_ context.Context, id string, at time.Time) error {
	f.notices[id] = at
	return nil
}

type publishedEvent struct {
	ID     string
	Action string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishSubscriptionEvent(_ context.Context, id, action string, _ int64) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{ID: id, Action: action})
	return nil
}

func newTestService(t *testing.T) (*SubscriptionService, *fakeStore, *fakePublisher, *core.Collection) {
	t.Helper()
	store := newFakeStore()
	pub := &fakePublisher{}
	coll := core.NewCollection()
	svc := NewSubscriptionService(store, coll, pub, time.Hour)
	return svc, store, pub, coll
}

func validInput() core.Subscription {
	return core.Subscription{
		Name:      "Spotify",
		Cost:      9.99,
		Currency:  "EUR",
		Cycle:     core.Monthly,
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Category:  core.CategoryMusic,
	}
}

func TestCreateAssignsIDAndHistory(t *testing.T) {
	svc, store, pub, coll := newTestService(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if sub.ID == "" {
		t.Error("expected generated ID")
	}
	if !sub.IsActive || sub.IsArchived {
		t.Errorf("new subscription should be active, got active=%v archived=%v", sub.IsActive, sub.IsArchived)
	}
	if len(sub.PriceHistory) != 1 || sub.PriceHistory[0].Price != 9.99 {
		t.Errorf("price history = %+v, want one entry at 9.99", sub.PriceHistory)
	}
	if _, ok := store.subs[sub.ID]; !ok {
		t.Error("subscription not persisted")
	}
	if _, ok := coll.Get(sub.ID); !ok {
		t.Error("subscription not in collection")
	}
	if len(pub.events) != 1 || pub.events[0].Action != "created" {
		t.Errorf("events = %+v, want one created event", pub.events)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	in := validInput()
	in.Name = ""
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("got %v, want ErrEmptyName", err)
	}
	if len(store.subs) != 0 {
		t.Error("invalid subscription must not be persisted")
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	svc, store, pub, _ := newTestService(t)
	pub.err = errors.New("broker unreachable")

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create should not fail on publish error, got %v", err)
	}
	if _, ok := store.subs[sub.ID]; !ok {
		t.Error("subscription should still be persisted")
	}
}

func TestUpdatePreservesPriceHistory(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	edited := sub
	edited.Name = "Spotify Family"
	edited.Cost = 999 // must be ignored; ChangePrice owns the cost
	got, err := svc.Update(ctx, edited)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got.Name != "Spotify Family" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Cost != 9.99 {
		t.Errorf("cost = %.2f, update must not change the price", got.Cost)
	}
	if len(got.PriceHistory) != 1 {
		t.Errorf("history length = %d, want 1", len(got.PriceHistory))
	}
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	in := validInput()
	in.ID = "missing"
	if _, err := svc.Update(context.Background(), in); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestArchiveAndActivate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	archived, err := svc.Archive(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.IsArchived || archived.Counted() {
		t.Errorf("archived subscription should not be counted: %+v", archived)
	}

	active, err := svc.Activate(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !active.Counted() {
		t.Errorf("activated subscription should be counted: %+v", active)
	}
}

func TestChangePrice(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.ChangePrice(ctx, sub.ID, 11.99, "plan change")
	if err != nil {
		t.Fatalf("ChangePrice: %v", err)
	}
	if got.Cost != 11.99 {
		t.Errorf("cost = %.2f, want 11.99", got.Cost)
	}
	if len(got.PriceHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.PriceHistory))
	}
	last := got.PriceHistory[1]
	if last.PreviousPrice == nil || *last.PreviousPrice != 9.99 {
		t.Errorf("previous price = %v, want 9.99", last.PreviousPrice)
	}

	if _, err := svc.ChangePrice(ctx, sub.ID, -1, "bad"); !errors.Is(err, core.ErrNegativeCost) {
		t.Errorf("negative price: got %v, want ErrNegativeCost", err)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	svc, _, pub, coll := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := coll.Get(sub.ID); ok {
		t.Error("deleted subscription still in collection")
	}

	restored, err := svc.Restore(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.ID != sub.ID {
		t.Errorf("restored ID = %q, want %q", restored.ID, sub.ID)
	}
	if _, ok := coll.Get(sub.ID); !ok {
		t.Error("restored subscription missing from collection")
	}

	wantActions := []string{"created", "deleted", "updated"}
	if len(pub.events) != len(wantActions) {
		t.Fatalf("events = %+v, want %v", pub.events, wantActions)
	}
	for i, action := range wantActions {
		if pub.events[i].Action != action {
			t.Errorf("event[%d] = %q, want %q", i, pub.events[i].Action, action)
		}
	}
}

func TestDeleteUnknownID(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
