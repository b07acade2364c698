package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an operation targets an item id that is not stored.
var ErrNotFound = errors.New("item not found")

// Outcome reports what an idempotent write did.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
)

// DefaultName is stored when a listing carries neither a name nor a type line.
const DefaultName = "unnamed"

// Listing holds seller annotations for items discovered through search.
type Listing struct {
	Account string `json:"account,omitempty"`
	Indexed string `json:"indexed,omitempty"`
	Price   string `json:"price,omitempty"`
}

// StashLocation identifies where an item sits inside a guild stash.
type StashLocation struct {
	TabName  string
	Position string
}

// NewItem is the input to the insert operations.
type NewItem struct {
	ID         string
	Name       string
	RawPayload []byte
	Listing    *Listing
}

// Item is a persisted marketplace item.
type Item struct {
	ID                string
	Name              string
	RawPayload        []byte
	Listing           *Listing
	Stash             *StashLocation
	HasArtifact       bool
	DeliveredAt       *time.Time
	Suppressed        bool
	DeliveryAttempts  int
	LastDeliveryError string
	DiscoveredAt      time.Time
}

// Delivered reports whether the item has been sent to every channel.
func (i *Item) Delivered() bool {
	return i != nil && i.DeliveredAt != nil
}

// EligibleForDelivery mirrors the dispatcher's selection predicate.
func (i *Item) EligibleForDelivery() bool {
	return i != nil && i.HasArtifact && i.DeliveredAt == nil && !i.Suppressed
}

// State summarizes the lifecycle position for display.
func (i *Item) State() string {
	switch {
	case i == nil:
		return ""
	case i.DeliveredAt != nil:
		return "delivered"
	case i.Suppressed:
		return "suppressed"
	case i.HasArtifact:
		return "rendered"
	default:
		return "discovered"
	}
}

// Stats aggregates item counts by lifecycle state.
type Stats struct {
	Total           int
	PendingRender   int
	PendingDelivery int
	Delivered       int
	Suppressed      int
	Exhausted       int
}
