package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetByID fetches a single item, returning ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// Exists reports whether id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check item %s: %w", id, err)
	}
	return count > 0, nil
}

// PendingRender returns up to limit items without an artifact, oldest first.
func (s *Store) PendingRender(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE has_artifact = 0
         ORDER BY discovered_at ASC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending render: %w", err)
	}
	return scanItems(rows)
}

// PendingDelivery returns up to limit items that are rendered, undelivered,
// not suppressed, and below maxAttempts failed deliveries (maxAttempts <= 0
// disables the attempt cap). Oldest first.
func (s *Store) PendingDelivery(ctx context.Context, maxAttempts, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items
         WHERE has_artifact = 1 AND delivered_at IS NULL AND suppressed = 0
           AND (? <= 0 OR delivery_attempts < ?)
         ORDER BY discovered_at ASC, id ASC LIMIT ?`,
		maxAttempts,
		maxAttempts,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending delivery: %w", err)
	}
	return scanItems(rows)
}

// ListOptions narrows List results.
type ListOptions struct {
	Limit  int
	Offset int
	// State filters by Item.State(); empty means all.
	State string
}

// List returns items newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	where := ""
	switch opts.State {
	case "":
	case "delivered":
		where = "WHERE delivered_at IS NOT NULL"
	case "suppressed":
		where = "WHERE delivered_at IS NULL AND suppressed = 1"
	case "rendered":
		where = "WHERE delivered_at IS NULL AND suppressed = 0 AND has_artifact = 1"
	case "discovered":
		where = "WHERE delivered_at IS NULL AND suppressed = 0 AND has_artifact = 0"
	default:
		return nil, fmt.Errorf("unknown item state %q", opts.State)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items `+where+`
         ORDER BY discovered_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return scanItems(rows)
}

// Latest returns the item at position offset counting back from the newest
// discovery (offset 0 is the newest).
func (s *Store) Latest(ctx context.Context, offset int) (*Item, error) {
	if offset < 0 {
		offset = 0
	}
	items, err := s.List(ctx, ListOptions{Limit: 1, Offset: offset})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no item at offset %d", ErrNotFound, offset)
	}
	return items[0], nil
}

// Random returns an arbitrary stored item.
func (s *Store) Random(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY RANDOM() LIMIT 1`)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: store is empty", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("random item: %w", err)
	}
	return item, nil
}

// LatestDiscoveredAt returns the newest discovered_at, or the zero time when empty.
func (s *Store) LatestDiscoveredAt(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(discovered_at) FROM items`).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("latest discovered_at: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	ts, err := parseTimeString(raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse discovered_at %q: %w", raw.String, err)
	}
	return ts, nil
}

// Stats aggregates counts by lifecycle state. Items at or above maxAttempts
// failed deliveries are counted as exhausted instead of pending delivery.
func (s *Store) Stats(ctx context.Context, maxAttempts int) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
            COUNT(1),
            COALESCE(SUM(CASE WHEN has_artifact = 0 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN has_artifact = 1 AND delivered_at IS NULL AND suppressed = 0
                AND (? <= 0 OR delivery_attempts < ?) THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN delivered_at IS NOT NULL THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN suppressed = 1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN delivered_at IS NULL AND suppressed = 0
                AND ? > 0 AND delivery_attempts >= ? THEN 1 ELSE 0 END), 0)
         FROM items`,
		maxAttempts, maxAttempts, maxAttempts, maxAttempts,
	).Scan(&stats.Total, &stats.PendingRender, &stats.PendingDelivery, &stats.Delivered, &stats.Suppressed, &stats.Exhausted)
	if err != nil {
		return Stats{}, fmt.Errorf("item stats: %w", err)
	}
	return stats, nil
}
