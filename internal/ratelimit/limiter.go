// Package ratelimit bounds how often one identity may trigger the insight
// pipeline. Windows are fixed and reset lazily on the first request after
// expiry; there is no background timer.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// CounterStore atomically records one request for identity and returns the
// window state after the increment. Implementations must make the
// expire-check and increment a single atomic step per identity.
type CounterStore interface {
	Increment(ctx context.Context, identity string, now time.Time, window time.Duration) (Window, error)
}

// Window is the state of one identity's current window.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Decision is the result of an Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter applies a fixed-window policy on top of a CounterStore.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a Limiter allowing limit requests per window.
func New(store CounterStore, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		store:   store,
		limit:   limit,
		window:  window,
		nowFunc: time.Now,
	}
}

// Allow records a request for identity and reports whether it is within the
// limit. Store errors are returned so callers can fail closed.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.nowFunc()
	w, err := l.store.Increment(ctx, identity, now, l.window)
	if err != nil {
		return Decision{}, eris.Wrapf(err, "ratelimit: increment %s", identity)
	}

	d := Decision{Limit: l.limit}
	if w.Count <= l.limit {
		d.Allowed = true
		d.Remaining = l.limit - w.Count
		return d, nil
	}

	d.RetryAfter = w.ResetAt.Sub(now)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d, nil
}

// RetryAfterSeconds rounds the retry hint up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
