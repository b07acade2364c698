package dispatch

import (
	"fmt"

	"lootwatch/internal/store"
	"lootwatch/internal/textutil"
)

// Caption describes where an item came from: the stash tab and cell for
// guild stash items, the seller and price for marketplace listings.
func Caption(item *store.Item) string {
	if item == nil {
		return ""
	}
	lines := []string{item.Name}
	switch {
	case item.Stash != nil:
		lines = append(lines, "Tab: "+item.Stash.TabName)
		if item.Stash.Position != "" {
			lines = append(lines, "Position: "+item.Stash.Position)
		}
	case item.Listing != nil:
		if item.Listing.Account != "" {
			lines = append(lines, "Seller: "+item.Listing.Account)
		}
		if item.Listing.Price != "" {
			lines = append(lines, "Price: "+item.Listing.Price)
		}
	}
	if item.DeliveryAttempts > 0 {
		lines = append(lines, fmt.Sprintf("(retry %d)", item.DeliveryAttempts))
	}
	return textutil.JoinLines(lines...)
}
