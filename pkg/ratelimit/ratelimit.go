package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter paces crawl requests to a fixed interval, with optional jitter.
// The delay is applied uniformly after every fetch attempt, successful or
// not, so error storms cannot raise the request rate against a target site.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
}

// New creates a limiter that enforces one operation per interval. A zero or
// negative interval disables pacing. Jitter is clamped to [0, 1] and widens
// each sleep by up to jitter*interval.
func New(interval time.Duration, jitter float64) *Limiter {
	if interval < 0 {
		interval = 0
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{interval: interval, jitter: jitter}
}

// Wait sleeps for the configured interval or until the context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval == 0 {
		return nil
	}
	d := l.interval
	if l.jitter > 0 {
		d += time.Duration(rand.Float64() * l.jitter * float64(l.interval))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured base interval.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
