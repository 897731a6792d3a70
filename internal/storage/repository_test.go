package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/currency"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "subtrack.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleSubscription(id string) core.Subscription {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return core.Subscription{
		ID:        id,
		Name:      "Netflix",
		Cost:      15.99,
		Currency:  "EUR",
		Cycle:     core.Monthly,
		StartDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Category:  core.CategoryStreaming,
		IsActive:  true,
		PriceHistory: []core.PriceChange{
			{Price: 15.99, ChangedAt: now, Reason: "initial price"},
		},
		SharedWith: []core.Member{{Name: "Anna"}, {Name: "Luca"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateAndGetSubscription(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := sampleSubscription("sub-1")
	if err := repo.CreateSubscription(ctx, want); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	got, err := repo.GetSubscription(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Name != want.Name || got.Cost != want.Cost || got.Cycle != want.Cycle {
		t.Errorf("got %q %.2f %s, want %q %.2f %s",
			got.Name, got.Cost, got.Cycle, want.Name, want.Cost, want.Cycle)
	}
	if len(got.PriceHistory) != 1 || got.PriceHistory[0].Price != 15.99 {
		t.Errorf("price history = %+v, want one entry at 15.99", got.PriceHistory)
	}
	if got.PriceHistory[0].PreviousPrice != nil {
		t.Errorf("initial entry should have nil previous price, got %v", *got.PriceHistory[0].PreviousPrice)
	}
	if len(got.SharedWith) != 2 || got.SharedWith[0].Name != "Anna" {
		t.Errorf("shared members = %+v, want Anna and Luca", got.SharedWith)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetSubscription(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateSubscriptionReplacesMembers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := sampleSubscription("sub-1")
	if err := repo.CreateSubscription(ctx, s); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	s.Name = "Netflix Premium"
	s.SharedWith = []core.Member{{Name: "Marco"}}
	if err := repo.UpdateSubscription(ctx, s); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	got, err := repo.GetSubscription(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Name != "Netflix Premium" {
		t.Errorf("name = %q, want Netflix Premium", got.Name)
	}
	if len(got.SharedWith) != 1 || got.SharedWith[0].Name != "Marco" {
		t.Errorf("shared members = %+v, want only Marco", got.SharedWith)
	}
}

func TestAppendPriceChange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSubscription(ctx, sampleSubscription("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	prev := 15.99
	change := core.PriceChange{
		Price:         17.99,
		PreviousPrice: &prev,
		ChangedAt:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Reason:        "annual increase",
	}
	if err := repo.AppendPriceChange(ctx, "sub-1", change); err != nil {
		t.Fatalf("AppendPriceChange: %v", err)
	}

	got, err := repo.GetSubscription(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.Cost != 17.99 {
		t.Errorf("cost = %.2f, want 17.99", got.Cost)
	}
	if len(got.PriceHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.PriceHistory))
	}
	last := got.PriceHistory[1]
	if last.Price != 17.99 || last.PreviousPrice == nil || *last.PreviousPrice != 15.99 {
		t.Errorf("last change = %+v, want 17.99 from 15.99", last)
	}

	if err := repo.AppendPriceChange(ctx, "missing", change); !errors.Is(err, ErrNotFound) {
		t.Errorf("append on missing id: got %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSubscription(ctx, sampleSubscription("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	deletedAt := time.Now().UTC()
	if err := repo.SoftDeleteSubscription(ctx, "sub-1", deletedAt); err != nil {
		t.Fatalf("SoftDeleteSubscription: %v", err)
	}

	subs, err := repo.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("deleted subscription still listed: %+v", subs)
	}

	// Get still sees the row so the mirror worker can remove it downstream.
	if _, err := repo.GetSubscription(ctx, "sub-1"); err != nil {
		t.Errorf("GetSubscription after delete: %v", err)
	}

	if err := repo.RestoreSubscription(ctx, "sub-1", time.Hour, time.Now().UTC()); err != nil {
		t.Fatalf("RestoreSubscription: %v", err)
	}
	subs, err = repo.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("restored subscription not listed, got %d rows", len(subs))
	}
}

func TestRestoreOutsideWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSubscription(ctx, sampleSubscription("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	deletedAt := time.Now().UTC().Add(-2 * time.Hour)
	if err := repo.SoftDeleteSubscription(ctx, "sub-1", deletedAt); err != nil {
		t.Fatalf("SoftDeleteSubscription: %v", err)
	}

	err := repo.RestoreSubscription(ctx, "sub-1", time.Hour, time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("restore past window: got %v, want ErrNotFound", err)
	}
}

func TestRateTableRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	empty, err := repo.LoadRateTable(ctx)
	if err != nil {
		t.Fatalf("LoadRateTable: %v", err)
	}
	if len(empty.Rates) != 0 {
		t.Errorf("fresh database should have no rates, got %d", len(empty.Rates))
	}

	table := currency.RateTable{
		Base: "USD",
		AsOf: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Rates: map[string]float64{
			"EUR": 0.92,
			"GBP": 0.79,
		},
	}
	if err := repo.SaveRateTable(ctx, table); err != nil {
		t.Fatalf("SaveRateTable: %v", err)
	}

	got, err := repo.LoadRateTable(ctx)
	if err != nil {
		t.Fatalf("LoadRateTable: %v", err)
	}
	if got.Base != "USD" || got.Rates["EUR"] != 0.92 || got.Rates["GBP"] != 0.79 {
		t.Errorf("loaded table = %+v, want what was saved", got)
	}

	// A second save replaces the snapshot instead of accumulating rows.
	table.Rates = map[string]float64{"JPY": 148.2}
	if err := repo.SaveRateTable(ctx, table); err != nil {
		t.Fatalf("SaveRateTable (second): %v", err)
	}
	got, err = repo.LoadRateTable(ctx)
	if err != nil {
		t.Fatalf("LoadRateTable (second): %v", err)
	}
	if len(got.Rates) != 1 || got.Rates["JPY"] != 148.2 {
		t.Errorf("second snapshot = %+v, want only JPY", got.Rates)
	}
}

func TestSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.GetSetting(ctx, "display_currency", "EUR")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "EUR" {
		t.Errorf("unset key: got %q, want fallback EUR", v)
	}

	if err := repo.SetSetting(ctx, "display_currency", "USD"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := repo.SetSetting(ctx, "display_currency", "GBP"); err != nil {
		t.Fatalf("SetSetting (overwrite): %v", err)
	}

	v, err = repo.GetSetting(ctx, "display_currency", "EUR")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "GBP" {
		t.Errorf("got %q, want GBP", v)
	}
}

func TestRenewalNotices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSubscription(ctx, sampleSubscription("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	_, ok, err := repo.LastRenewalNotice(ctx, "sub-1")
	if err != nil {
		t.Fatalf("LastRenewalNotice: %v", err)
	}
	if ok {
		t.Error("expected no notice on a fresh subscription")
	}

	first := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	if err := repo.MarkRenewalNotified(ctx, "sub-1", first); err != nil {
		t.Fatalf("MarkRenewalNotified: %v", err)
	}
	second := first.AddDate(0, 1, 0)
	if err := repo.MarkRenewalNotified(ctx, "sub-1", second); err != nil {
		t.Fatalf("MarkRenewalNotified (upsert): %v", err)
	}

	at, ok, err := repo.LastRenewalNotice(ctx, "sub-1")
	if err != nil {
		t.Fatalf("LastRenewalNotice: %v", err)
	}
	if !ok || !at.Equal(second) {
		t.Errorf("got %v ok=%v, want %v", at, ok, second)
	}
}

func TestMirrorQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateSubscription(ctx, sampleSubscription("sub-1")); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	pending, err := repo.ListPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingMirror: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "sub-1" {
		t.Fatalf("pending = %+v, want sub-1", pending)
	}

	if err := repo.MarkMirrored(ctx, "sub-1"); err != nil {
		t.Fatalf("MarkMirrored: %v", err)
	}
	pending, err = repo.ListPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingMirror: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %+v, want none", pending)
	}

	// Any update re-queues the row.
	s := sampleSubscription("sub-1")
	s.Cost = 18.99
	if err := repo.UpdateSubscription(ctx, s); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	pending, err = repo.ListPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingMirror: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("update should re-queue the subscription, got %d pending", len(pending))
	}
}
