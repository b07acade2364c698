package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func (n NewItem) validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return errors.New("item id is required")
	}
	if len(n.RawPayload) == 0 {
		return errors.New("item raw payload is required")
	}
	return nil
}

func (n NewItem) name() string {
	if name := strings.TrimSpace(n.Name); name != "" {
		return name
	}
	return DefaultName
}

func (n NewItem) listingJSON() (any, error) {
	if n.Listing == nil {
		return nil, nil
	}
	data, err := json.Marshal(n.Listing)
	if err != nil {
		return nil, fmt.Errorf("marshal listing: %w", err)
	}
	return string(data), nil
}

// InsertIfAbsent stores a newly discovered item. An id that is already stored
// is left untouched and reported as OutcomeSkipped.
func (s *Store) InsertIfAbsent(ctx context.Context, item NewItem) (Outcome, error) {
	if err := item.validate(); err != nil {
		return "", err
	}
	listing, err := item.listingJSON()
	if err != nil {
		return "", err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (id, name, raw_payload, listing_json, discovered_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		item.ID,
		item.name(),
		string(item.RawPayload),
		listing,
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert item %s: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert item %s: rows affected: %w", item.ID, err)
	}
	if affected == 0 {
		return OutcomeSkipped, nil
	}
	return OutcomeInserted, nil
}

// UpsertStashItem stores an item seen in a stash tab. New ids are inserted with
// their location. Known ids only have their location rewritten, and only when
// it changed; the raw payload is never overwritten.
func (s *Store) UpsertStashItem(ctx context.Context, item NewItem, loc StashLocation) (Outcome, error) {
	if err := item.validate(); err != nil {
		return "", err
	}
	listing, err := item.listingJSON()
	if err != nil {
		return "", err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO items (id, name, raw_payload, listing_json, stash_tab_name, stash_position, discovered_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		item.ID,
		item.name(),
		string(item.RawPayload),
		listing,
		loc.TabName,
		loc.Position,
		s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert stash item %s: %w", item.ID, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("insert stash item %s: rows affected: %w", item.ID, err)
	} else if affected > 0 {
		return OutcomeInserted, nil
	}

	res, err = s.execWithRetry(
		ctx,
		`UPDATE items SET stash_tab_name = ?, stash_position = ?
         WHERE id = ? AND (stash_tab_name IS NOT ? OR stash_position IS NOT ?)`,
		loc.TabName,
		loc.Position,
		item.ID,
		loc.TabName,
		loc.Position,
	)
	if err != nil {
		return "", fmt.Errorf("update stash location %s: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("update stash location %s: rows affected: %w", item.ID, err)
	}
	if affected == 0 {
		return OutcomeSkipped, nil
	}
	return OutcomeUpdated, nil
}
