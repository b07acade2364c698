package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SearchResult is the response to a trade search: an opaque search id plus the
// matching item ids ordered newest first.
type SearchResult struct {
	ID     string   `json:"id"`
	Result []string `json:"result"`
	Total  int      `json:"total"`
}

// Account identifies a seller.
type Account struct {
	Name string `json:"name"`
}

// Price is the seller's asking price, when listed.
type Price struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ListingInfo carries seller metadata returned by the fetch endpoint.
type ListingInfo struct {
	Account Account `json:"account"`
	Indexed string  `json:"indexed"`
	Price   *Price  `json:"price,omitempty"`
}

// PriceText renders the price as "amount currency", or "" when unpriced.
func (l *ListingInfo) PriceText() string {
	if l == nil || l.Price == nil || l.Price.Currency == "" {
		return ""
	}
	return fmt.Sprintf("%g %s", l.Price.Amount, l.Price.Currency)
}

// Listing is one fetched search result. Item holds the verbatim item document.
type Listing struct {
	ID      string          `json:"id"`
	Listing *ListingInfo    `json:"listing"`
	Item    json.RawMessage `json:"item"`
}

// FetchResult is one fetch window.
type FetchResult struct {
	Listings []Listing
	// Delisted counts entries reported as null because the listing is gone.
	Delisted int
}

// Returned counts every entry in the response, delisted ones included.
func (r *FetchResult) Returned() int {
	if r == nil {
		return 0
	}
	return len(r.Listings) + r.Delisted
}

// StashTab is tab metadata from the guild stash endpoint.
type StashTab struct {
	Index int    `json:"i"`
	Name  string `json:"n"`
	Type  string `json:"type"`
}

// StashTabResult is the guild stash response for one tab index.
type StashTabResult struct {
	Tabs  []StashTab        `json:"tabs"`
	Items []json.RawMessage `json:"items"`
}

// StashRequest selects one guild stash tab.
type StashRequest struct {
	Account  string
	Realm    string
	League   string
	TabIndex int
}

// ItemSummary holds the fields lootwatch reads out of a raw item document.
type ItemSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TypeLine string `json:"typeLine"`
	BaseType string `json:"baseType"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// DisplayName prefers the item name, then its type line.
func (s ItemSummary) DisplayName() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return strings.TrimSpace(s.TypeLine)
}

// Named reports whether the item carries its own name (rares and uniques).
func (s ItemSummary) Named() bool {
	return strings.TrimSpace(s.Name) != ""
}

// Position encodes the in-tab coordinates as "x,y".
func (s ItemSummary) Position() string {
	return fmt.Sprintf("%d,%d", s.X, s.Y)
}

// ParseItem decodes the summary fields of a raw item document.
func ParseItem(raw json.RawMessage) (ItemSummary, error) {
	var summary ItemSummary
	if len(raw) == 0 {
		return summary, errors.New("empty item payload")
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return summary, fmt.Errorf("decode item payload: %w", err)
	}
	if strings.TrimSpace(summary.ID) == "" {
		return summary, errors.New("item payload has no id")
	}
	return summary, nil
}
