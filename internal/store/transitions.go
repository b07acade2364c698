package store

import (
	"context"
	"fmt"
	"strings"
)

// MarkRendered records that an artifact exists for id. Repeating the call is a no-op.
func (s *Store) MarkRendered(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `UPDATE items SET has_artifact = 1 WHERE id = ? AND has_artifact = 0`, id)
	if err != nil {
		return fmt.Errorf("mark rendered %s: %w", id, err)
	}
	return s.requireAffectedOrExists(ctx, id, res.RowsAffected)
}

// MarkDelivered stamps delivered_at for id once. Later calls keep the first
// stamp, and a suppressed item is never stamped.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET delivered_at = ?, last_delivery_error = NULL
         WHERE id = ? AND delivered_at IS NULL AND suppressed = 0`,
		s.now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark delivered %s: %w", id, err)
	}
	return s.requireAffectedOrExists(ctx, id, res.RowsAffected)
}

// MarkSuppressedBulk suppresses every stored item and returns how many rows
// changed. Items discovered afterwards are not affected.
func (s *Store) MarkSuppressedBulk(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `UPDATE items SET suppressed = 1 WHERE suppressed = 0`)
	if err != nil {
		return 0, fmt.Errorf("suppress all items: %w", err)
	}
	return res.RowsAffected()
}

// MarkSuppressed suppresses the given ids and returns how many rows changed.
func (s *Store) MarkSuppressed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE items SET suppressed = 1 WHERE suppressed = 0 AND id IN (` + makePlaceholders(len(ids)) + `)`
	res, err := s.execWithRetry(ctx, query, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("suppress items: %w", err)
	}
	return res.RowsAffected()
}

// RecordDeliveryFailure increments the delivery attempt counter for id and
// keeps the most recent failure message.
func (s *Store) RecordDeliveryFailure(ctx context.Context, id string, cause error) error {
	message := ""
	if cause != nil {
		message = strings.TrimSpace(cause.Error())
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE items SET delivery_attempts = delivery_attempts + 1, last_delivery_error = ?
         WHERE id = ? AND delivered_at IS NULL`,
		nullableString(message),
		id,
	)
	if err != nil {
		return fmt.Errorf("record delivery failure %s: %w", id, err)
	}
	return s.requireAffectedOrExists(ctx, id, res.RowsAffected)
}

// ResetDeliveryAttempts clears the attempt counter of undelivered items so the
// dispatcher picks them up again. With no ids every exhausted item is reset.
func (s *Store) ResetDeliveryAttempts(ctx context.Context, ids ...string) (int64, error) {
	query := `UPDATE items SET delivery_attempts = 0, last_delivery_error = NULL
        WHERE delivered_at IS NULL AND delivery_attempts > 0`
	var args []any
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		args = stringArgs(ids)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset delivery attempts: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) requireAffectedOrExists(ctx context.Context, id string, affected func() (int64, error)) error {
	n, err := affected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
