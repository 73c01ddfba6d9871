package loadable

import "time"

// BackoffPolicy computes the next resync delay. After failures, delays
// grow deterministically from min by multiplier up to max; growth is not
// jittered so schedules stay reproducible in tests. A success resets the
// window and yields the steady-state period instead.
type BackoffPolicy struct {
	min        time.Duration
	max        time.Duration
	multiplier float64
	period     time.Duration

	upperBound time.Duration
}

// NewBackoffPolicy creates a policy. It panics unless 0 < min <= max,
// multiplier >= 1 and period >= 0; an invalid window is a configuration
// error to be caught during development. A period of 0 disables periodic
// resync after success.
func NewBackoffPolicy(min, max time.Duration, multiplier float64, period time.Duration) *BackoffPolicy {
	switch {
	case min <= 0:
		panic("loadable: backoff min must be positive")
	case max < min:
		panic("loadable: backoff max must be >= min")
	case multiplier < 1:
		panic("loadable: backoff multiplier must be >= 1")
	case period < 0:
		panic("loadable: backoff period must be >= 0")
	}
	return &BackoffPolicy{
		min:        min,
		max:        max,
		multiplier: multiplier,
		period:     period,
		upperBound: min,
	}
}

// NextTimeout returns the delay before the next sync attempt. After a
// failure it returns the current bound and grows it; after a success it
// resets the bound and returns the steady-state period (0 meaning
// disabled).
func (b *BackoffPolicy) NextTimeout(afterFailure bool) time.Duration {
	if !afterFailure {
		b.upperBound = b.min
		return b.period
	}
	current := b.upperBound
	next := time.Duration(float64(b.upperBound) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.upperBound = next
	return current
}

// Reset shrinks the failure window back to min without returning a
// timeout. Used for fast recovery when the application re-enters the
// foreground.
func (b *BackoffPolicy) Reset() {
	b.upperBound = b.min
}
