package stream

import "time"

// Backoff produces reconnect delays that double from a base delay up to a
// ceiling. There is no attempt limit.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
	current time.Duration
}

// NewBackoff creates a backoff schedule
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max}
}

// Next returns the delay before the next attempt and advances the schedule
func (b *Backoff) Next() time.Duration {
	switch {
	case b.current == 0:
		b.current = b.base
	case b.current < b.max:
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	b.attempt++
	return b.current
}

// Reset returns the schedule to the base delay
func (b *Backoff) Reset() {
	b.attempt = 0
	b.current = 0
}

// Attempt returns the number of consecutive failures since the last reset
func (b *Backoff) Attempt() int {
	return b.attempt
}
