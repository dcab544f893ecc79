package httpx

import (
	"math/rand"
	"time"
)

// RetryPolicy consolidates the per-source retry knobs into one configurable
// value instead of scattering bespoke loops through the adapters.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Jitter      time.Duration
}

// DefaultRetry matches the tolerance most sources need.
var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	Multiplier:  2,
	Jitter:      500 * time.Millisecond,
}

// SlowSourceRetry is for proxied feeds that rate-limit aggressively.
var SlowSourceRetry = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   5 * time.Second,
	Multiplier:  1.5,
	Jitter:      time.Second,
}

// Delay returns the backoff for the given completed attempt count (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}
