package stash

import "time"

// Backoff stretches the wait between rounds while the stash stays unchanged.
// The wait is Base until the first empty round, then grows by Increment per
// consecutive empty round up to Max. Any round with an insert resets it.
type Backoff struct {
	Base      time.Duration
	Increment time.Duration
	Max       time.Duration

	empty int
}

// Observe records the number of items a completed round inserted.
func (b *Backoff) Observe(inserted int) {
	if inserted > 0 {
		b.empty = 0
		return
	}
	b.empty++
}

// EmptyRounds returns the number of consecutive rounds without inserts.
func (b *Backoff) EmptyRounds() int {
	return b.empty
}

// Wait returns the delay before the next round.
func (b *Backoff) Wait() time.Duration {
	wait := b.Base
	if b.empty >= 1 {
		wait += time.Duration(b.empty) * b.Increment
		if b.Max > 0 && wait > b.Max {
			wait = b.Max
		}
	}
	return wait
}

// Capped reports whether the wait has reached Max.
func (b *Backoff) Capped() bool {
	return b.Max > 0 && b.Wait() >= b.Max
}
