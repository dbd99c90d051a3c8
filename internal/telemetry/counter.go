// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a simple monotonic counter merged on read, used for the
// per-component observability counters mentioned in §5
// ("Observability counters are per-component, merged on read"): buffer
// overflow counts, poison-batch counts, collector error counts, and so on.
type Counter struct {
	v atomic.Int64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return c.v.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.v.Load()
}

// ErrorRate tracks the count of events (errors) within a trailing window,
// used by collector health reporting for error_rate_last_60s. Pack
// dependencies expose sliding-window rate *limiting* (allow/deny) but none
// expose a sliding-window *count* read, so this is a small hand-rolled
// ring of timestamps; justified in DESIGN.md.
type ErrorRate struct {
	window time.Duration
	mu     sync.Mutex
	events []time.Time
}

// NewErrorRate returns an [*ErrorRate] tracking events within window.
func NewErrorRate(window time.Duration) *ErrorRate {
	return &ErrorRate{window: window}
}

// Record registers one event at time now.
func (r *ErrorRate) Record(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, now)
	r.prune(now)
}

// Count returns the number of events recorded within the trailing window,
// as of now.
func (r *ErrorRate) Count(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)
	return len(r.events)
}

// prune must be called with r.mu held.
func (r *ErrorRate) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.events) && r.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.events = append(r.events[:0], r.events[i:]...)
	}
}
