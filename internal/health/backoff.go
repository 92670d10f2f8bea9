package health

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect schedule defaults.
const (
	DefaultCheckInterval          = 30 * time.Second
	DefaultMaxConsecutiveFailures = 3
	DefaultMaxBackoff             = 300 * time.Second

	maxBackoffMultiplier = 10
)

// ReconnectBackOff keeps Base for the first Threshold failures, then doubles
// per failure up to a 10x multiplier, capped at Ceiling. For base 30s,
// threshold 3 and ceiling 300s the intervals are 30, 30, 30, 60, 120, 240, 300.
type ReconnectBackOff struct {
	Base      time.Duration
	Threshold int
	Ceiling   time.Duration

	failures int
}

var _ backoff.BackOff = (*ReconnectBackOff)(nil)

// NewReconnectBackOff returns a schedule, filling zero values with defaults.
func NewReconnectBackOff(base time.Duration, threshold int, ceiling time.Duration) *ReconnectBackOff {
	if base <= 0 {
		base = DefaultCheckInterval
	}
	if threshold < 0 {
		threshold = DefaultMaxConsecutiveFailures
	}
	if ceiling <= 0 {
		ceiling = DefaultMaxBackoff
	}
	return &ReconnectBackOff{Base: base, Threshold: threshold, Ceiling: ceiling}
}

// Interval returns the wait after the given number of consecutive failures.
func (b *ReconnectBackOff) Interval(failures int) time.Duration {
	if failures <= b.Threshold {
		return b.Base
	}

	multiplier := maxBackoffMultiplier
	if exp := failures - b.Threshold; exp < 4 {
		multiplier = min(1<<exp, maxBackoffMultiplier)
	}

	interval := b.Base * time.Duration(multiplier)
	if b.Ceiling > 0 && interval > b.Ceiling {
		return b.Ceiling
	}
	return interval
}

// NextBackOff records one more failure and returns the wait before the next attempt.
func (b *ReconnectBackOff) NextBackOff() time.Duration {
	b.failures++
	return b.Interval(b.failures)
}

// Reset clears the failure count.
func (b *ReconnectBackOff) Reset() {
	b.failures = 0
}
