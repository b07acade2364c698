// Package dispatch delivers rendered artifacts to every configured channel.
//
// A cycle selects at most max_per_batch eligible items (rendered, not
// delivered, not suppressed, under the attempt cap), sends each to all
// channels concurrently and marks it delivered only when every channel
// accepted it. A partial failure records an attempt and leaves the item
// eligible, so the next cycle resends it to all channels; duplicates on the
// channels that already succeeded are accepted in exchange for never losing
// an item.
package dispatch
