// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// RateGate suppresses log storms by allowing at most one log emission per
// category (typically a [Kind] plus a short discriminator) per configured
// interval. §7 requires "each component logs once per failure kind per
// interval"; RateGate is the shared mechanism every component uses to
// satisfy that.
//
// Built on [catrate.Limiter], which tracks discrete events in a sliding
// window per category - exactly the "has this kind of failure already been
// logged recently" question RateGate answers.
type RateGate struct {
	limiter *catrate.Limiter
}

// NewRateGate returns a [*RateGate] allowing at most one log per category
// per interval. A non-positive interval disables suppression (every call
// to Allow returns true).
func NewRateGate(interval time.Duration) *RateGate {
	if interval <= 0 {
		return &RateGate{}
	}
	return &RateGate{
		limiter: catrate.NewLimiter(map[time.Duration]int{interval: 1}),
	}
}

// Allow reports whether a log line for the given category may be emitted
// now. Category is typically "<Kind>:<component>", e.g.
// "storage-transient:buffer".
func (g *RateGate) Allow(category string) bool {
	if g == nil || g.limiter == nil {
		return true
	}
	_, ok := g.limiter.Allow(category)
	return ok
}
