// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"math/rand/v2"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
)

// backoff computes exponential reconnection delays with jitter, shared by
// all three collector variants (spec.md §4.1: "reconnect with exponential
// backoff (configurable min/max, jitter +-20%)").
type backoff struct {
	cfg     config.BackoffConfig
	current time.Duration
}

// newBackoff returns a [*backoff] ready to produce its first delay.
func newBackoff(cfg config.BackoffConfig) *backoff {
	min := cfg.Min
	if min <= 0 {
		min = 500 * time.Millisecond
	}
	return &backoff{cfg: cfg, current: min}
}

// Next returns the next delay to wait before reconnecting, doubling the
// previous delay (capped at cfg.Max) and applying +-jitter.
func (b *backoff) Next() time.Duration {
	d := b.current

	max := b.cfg.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	jitter := b.cfg.Jitter
	if jitter <= 0 {
		jitter = 0.2
	}
	spread := float64(d) * jitter
	delta := (rand.Float64()*2 - 1) * spread
	jittered := time.Duration(float64(d) + delta)
	if jittered < 0 {
		jittered = 0
	}

	next := d * 2
	if next > max || next <= 0 {
		next = max
	}
	b.current = next

	return jittered
}

// Reset returns the backoff to its initial delay, called after a
// successful (re)connection.
func (b *backoff) Reset() {
	min := b.cfg.Min
	if min <= 0 {
		min = 500 * time.Millisecond
	}
	b.current = min
}
