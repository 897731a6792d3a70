// Package storage persists subscriptions, price history, exchange-rate
// snapshots and settings in SQLite. The API server loads everything into the
// in-memory collection at startup and writes through on every mutation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/currency"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a subscription ID does not exist (or is
// outside the undo window for restores).
var ErrNotFound = errors.New("subscription not found")

// Mirror states for the spreadsheet mirror worker.
const (
	MirrorPending = "pending"
	MirrorSynced  = "synced"
	MirrorError   = "error"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateSubscription inserts the subscription with its price history and
// shared members in one transaction.
func (r *Repository) CreateSubscription(ctx context.Context, s core.Subscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions
			(id, name, cost, currency, billing_cycle, start_date, category,
			 is_active, is_archived, is_trial, trial_end_date,
			 created_at, updated_at, mirror_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Cost, s.Currency, string(s.Cycle), s.StartDate, string(s.Category),
		s.IsActive, s.IsArchived, s.IsTrial, nullableTime(s.TrialEndDate),
		s.CreatedAt, s.UpdatedAt, MirrorPending)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	for _, pc := range s.PriceHistory {
		if err := insertPriceChange(ctx, tx, s.ID, pc); err != nil {
			return err
		}
	}
	if err := insertMembers(ctx, tx, s.ID, s.SharedWith); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved",
		"id", s.ID,
		"name", s.Name,
		"cost", s.Cost,
		"currency", s.Currency,
		"cycle", s.Cycle)
	return nil
}

// UpdateSubscription rewrites the mutable fields and the shared-member list.
// Price history rows are append-only and handled by AppendPriceChange.
func (r *Repository) UpdateSubscription(ctx context.Context, s core.Subscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET
			name = ?, cost = ?, currency = ?, billing_cycle = ?, start_date = ?,
			category = ?, is_active = ?, is_archived = ?, is_trial = ?,
			trial_end_date = ?, updated_at = ?, mirror_status = ?
		WHERE id = ? AND deleted_at IS NULL`,
		s.Name, s.Cost, s.Currency, string(s.Cycle), s.StartDate,
		string(s.Category), s.IsActive, s.IsArchived, s.IsTrial,
		nullableTime(s.TrialEndDate), s.UpdatedAt, MirrorPending, s.ID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shared_members WHERE subscription_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear shared members: %w", err)
	}
	if err := insertMembers(ctx, tx, s.ID, s.SharedWith); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendPriceChange records one price-history entry and moves the current
// cost along with it, keeping the two consistent.
func (r *Repository) AppendPriceChange(ctx context.Context, id string, pc core.PriceChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET cost = ?, updated_at = ?, mirror_status = ?
		WHERE id = ? AND deleted_at IS NULL`,
		pc.Price, pc.ChangedAt, MirrorPending, id)
	if err != nil {
		return fmt.Errorf("update cost: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := insertPriceChange(ctx, tx, id, pc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Price change recorded", "id", id, "price", pc.Price)
	return nil
}

// SoftDeleteSubscription marks the row deleted; the undo window is enforced
// by RestoreSubscription.
func (r *Repository) SoftDeleteSubscription(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET deleted_at = ?, mirror_status = ? WHERE id = ? AND deleted_at IS NULL`,
		at, MirrorPending, id)
	if err != nil {
		return fmt.Errorf("soft delete subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Subscription soft-deleted", "id", id)
	return nil
}

// RestoreSubscription clears a soft delete if it happened within the undo
// window ending at now.
func (r *Repository) RestoreSubscription(ctx context.Context, id string, window time.Duration, now time.Time) error {
	cutoff := now.Add(-window)
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET deleted_at = NULL, mirror_status = ?
		 WHERE id = ? AND deleted_at IS NOT NULL AND deleted_at >= ?`,
		MirrorPending, id, cutoff)
	if err != nil {
		return fmt.Errorf("restore subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Subscription restored", "id", id)
	return nil
}

// GetSubscription loads one subscription with its price history and shared
// members. Soft-deleted rows are returned too; the mirror worker needs them.
func (r *Repository) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx, subscriptionColumns+` WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return core.Subscription{}, ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	if err := r.attachDetails(ctx, &s); err != nil {
		return core.Subscription{}, err
	}
	return s, nil
}

// ListSubscriptions returns every non-deleted subscription with full detail,
// ordered by creation time.
func (r *Repository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, subscriptionColumns+` WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	for i := range subs {
		if err := r.attachDetails(ctx, &subs[i]); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// SaveRateTable replaces the persisted exchange-rate snapshot.
func (r *Repository) SaveRateTable(ctx context.Context, t currency.RateTable) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exchange_rates`); err != nil {
		return fmt.Errorf("clear exchange rates: %w", err)
	}
	for code, rate := range t.Rates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exchange_rates (code, rate, base, fetched_at) VALUES (?, ?, ?, ?)`,
			code, rate, t.Base, t.AsOf); err != nil {
			return fmt.Errorf("insert rate %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Exchange rates persisted", "base", t.Base, "count", len(t.Rates))
	return nil
}

// LoadRateTable returns the persisted snapshot, or an empty table when no
// refresh ever completed (every lookup then degrades to the identity rate).
func (r *Repository) LoadRateTable(ctx context.Context) (currency.RateTable, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, rate, base, fetched_at FROM exchange_rates`)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("load exchange rates: %w", err)
	}
	defer rows.Close()

	table := currency.RateTable{Rates: make(map[string]float64)}
	for rows.Next() {
		var code, base string
		var rate float64
		var fetchedAt time.Time
		if err := rows.Scan(&code, &rate, &base, &fetchedAt); err != nil {
			return currency.RateTable{}, fmt.Errorf("scan rate: %w", err)
		}
		table.Rates[code] = rate
		table.Base = base
		table.AsOf = fetchedAt
	}
	if err := rows.Err(); err != nil {
		return currency.RateTable{}, fmt.Errorf("iterate rates: %w", err)
	}
	return table, nil
}

// GetSetting returns the value for a key, or fallback when unset.
func (r *Repository) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// LastRenewalNotice returns when a renewal event was last published for the
// subscription; ok is false when it never was.
func (r *Repository) LastRenewalNotice(ctx context.Context, id string) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT notified_at FROM renewal_notices WHERE subscription_id = ?`, id).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get renewal notice: %w", err)
	}
	return at, true, nil
}

func (r *Repository) MarkRenewalNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO renewal_notices (subscription_id, notified_at) VALUES (?, ?)
		 ON CONFLICT(subscription_id) DO UPDATE SET notified_at = excluded.notified_at`, id, at)
	if err != nil {
		return fmt.Errorf("mark renewal notified: %w", err)
	}
	return nil
}

// ListPendingMirror returns subscriptions that still need mirroring, oldest
// first. This is the fallback path for lost AMQP messages.
func (r *Repository) ListPendingMirror(ctx context.Context, limit int) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		subscriptionColumns+` WHERE mirror_status = ? ORDER BY updated_at LIMIT ?`,
		MirrorPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending mirror: %w", err)
	}
	defer rows.Close()

	var subs []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *Repository) MarkMirrored(ctx context.Context, id string) error {
	return r.setMirrorStatus(ctx, id, MirrorSynced)
}

func (r *Repository) MarkMirrorError(ctx context.Context, id string) error {
	return r.setMirrorStatus(ctx, id, MirrorError)
}

func (r *Repository) setMirrorStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET mirror_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set mirror status: %w", err)
	}
	return nil
}

// IsDeleted reports whether the subscription row carries a soft-delete mark.
func (r *Repository) IsDeleted(ctx context.Context, id string) (bool, error) {
	var deletedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT deleted_at FROM subscriptions WHERE id = ?`, id).Scan(&deletedAt)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check deleted: %w", err)
	}
	return deletedAt.Valid, nil
}

const subscriptionColumns = `
	SELECT id, name, cost, currency, billing_cycle, start_date, category,
	       is_active, is_archived, is_trial, trial_end_date,
	       created_at, updated_at
	FROM subscriptions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (core.Subscription, error) {
	var s core.Subscription
	var cycle, category string
	var trialEnd sql.NullTime
	err := row.Scan(&s.ID, &s.Name, &s.Cost, &s.Currency, &cycle, &s.StartDate, &category,
		&s.IsActive, &s.IsArchived, &s.IsTrial, &trialEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return core.Subscription{}, err
	}
	s.Cycle = core.BillingCycle(cycle)
	s.Category = core.Category(category)
	if trialEnd.Valid {
		t := trialEnd.Time
		s.TrialEndDate = &t
	}
	return s, nil
}

func (r *Repository) attachDetails(ctx context.Context, s *core.Subscription) error {
	history, err := r.priceHistory(ctx, s.ID)
	if err != nil {
		return err
	}
	s.PriceHistory = history

	members, err := r.sharedMembers(ctx, s.ID)
	if err != nil {
		return err
	}
	s.SharedWith = members
	return nil
}

func (r *Repository) priceHistory(ctx context.Context, id string) ([]core.PriceChange, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT price, previous_price, changed_at, reason
		 FROM price_history WHERE subscription_id = ? ORDER BY changed_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	defer rows.Close()

	var history []core.PriceChange
	for rows.Next() {
		var pc core.PriceChange
		var prev sql.NullFloat64
		if err := rows.Scan(&pc.Price, &prev, &pc.ChangedAt, &pc.Reason); err != nil {
			return nil, fmt.Errorf("scan price change: %w", err)
		}
		if prev.Valid {
			p := prev.Float64
			pc.PreviousPrice = &p
		}
		history = append(history, pc)
	}
	return history, rows.Err()
}

func (r *Repository) sharedMembers(ctx context.Context, id string) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM shared_members WHERE subscription_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load shared members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func insertPriceChange(ctx context.Context, tx *sql.Tx, id string, pc core.PriceChange) error {
	var prev any
	if pc.PreviousPrice != nil {
		prev = *pc.PreviousPrice
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (subscription_id, price, previous_price, changed_at, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		id, pc.Price, prev, pc.ChangedAt, pc.Reason)
	if err != nil {
		return fmt.Errorf("insert price change: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, id string, members []core.Member) error {
	for _, m := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shared_members (subscription_id, name) VALUES (?, ?)`, id, m.Name); err != nil {
			return fmt.Errorf("insert shared member: %w", err)
		}
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
