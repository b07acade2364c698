package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const itemColumns = "id, name, raw_payload, listing_json, stash_tab_name, stash_position, has_artifact, delivered_at, suppressed, delivery_attempts, last_delivery_error, discovered_at"

// timeLayout is fixed width so lexical ordering of stored values matches
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           string
		name         sql.NullString
		rawPayload   sql.NullString
		listingJSON  sql.NullString
		stashTab     sql.NullString
		stashPos     sql.NullString
		hasArtifact  sql.NullInt64
		deliveredRaw sql.NullString
		suppressed   sql.NullInt64
		attempts     sql.NullInt64
		lastError    sql.NullString
		discovered   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&rawPayload,
		&listingJSON,
		&stashTab,
		&stashPos,
		&hasArtifact,
		&deliveredRaw,
		&suppressed,
		&attempts,
		&lastError,
		&discovered,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		Name:              name.String,
		RawPayload:        []byte(rawPayload.String),
		HasArtifact:       hasArtifact.Int64 != 0,
		Suppressed:        suppressed.Int64 != 0,
		DeliveryAttempts:  int(attempts.Int64),
		LastDeliveryError: lastError.String,
	}
	if listingJSON.Valid && listingJSON.String != "" {
		var listing Listing
		if err := json.Unmarshal([]byte(listingJSON.String), &listing); err == nil {
			item.Listing = &listing
		}
	}
	if stashTab.Valid {
		item.Stash = &StashLocation{TabName: stashTab.String, Position: stashPos.String}
	}
	if deliveredRaw.Valid {
		if delivered, err := parseTimeString(deliveredRaw.String); err == nil {
			item.DeliveredAt = &delivered
		}
	}
	if ts, err := parseTimeString(discovered.String); err == nil {
		item.DiscoveredAt = ts
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stringArgs(values []string) []any {
	args := make([]any, 0, len(values))
	for _, value := range values {
		args = append(args, value)
	}
	return args
}
