package kraken

import "time"

// Backoff is an exponential reconnect delay: each Next doubles the delay up
// to max; Reset returns to the initial value.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a Backoff. max below initial is raised to initial.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the delay to wait now and advances to min(2×delay, max).
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max || b.current <= 0 {
		b.current = b.max
	}
	return d
}

// Current returns the delay the next call to Next will return.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Reset goes back to the initial delay after a successful subscribe.
func (b *Backoff) Reset() {
	b.current = b.initial
}
