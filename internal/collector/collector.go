// SPDX-License-Identifier: GPL-3.0-or-later

// Package collector implements the three source-collector variants
// (subscription, polling, pull-API) behind a uniform start/stop/health
// surface, per spec.md §4.1 and §9's "heterogeneous collectors behind a
// uniform start/stop/health surface" design note: a closed set of variant
// structs, selected by [New] via a type switch on the source kind, rather
// than open inheritance.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// Collector produces a sequence of [sample.Sample] values from one
// external source, with reconnection and health reporting.
type Collector interface {
	// Start begins producing samples into the output channel. It returns
	// a [*telemetry.ConfigurationError] immediately (not after entering
	// the run loop) for the configuration problems each variant checks:
	// an invalid polling endpoint; an empty endpoint, unknown auth mode,
	// or missing or malformed credentials for a pull-api source; no
	// attached source for a subscription collector. Declared tags are not
	// validated, and a second call to Start is not guarded against.
	Start(ctx context.Context) error

	// Stop gracefully drains in-flight reads within a deadline carried
	// by ctx.
	Stop(ctx context.Context) error

	// Health reports the collector's current status.
	Health() Health
}

// Health is the status surface spec.md §4.1 requires: {connected,
// last_sample_ts, error_rate_last_60s}.
type Health struct {
	Connected      bool
	LastSampleTS   int64
	ErrorRateLast60s int
}

// Sink is where a collector pushes decoded samples. Implementations bound
// the channel and apply the variant-specific overflow policy described in
// spec.md §4.1 (block for polling/pull-API, drop-oldest-with-counter for
// subscription).
type Sink interface {
	Push(ctx context.Context, s *sample.Sample)
}

// ChanSink adapts a bounded Go channel to [Sink], pushing with a blocking
// send (used by the polling and pull-API collectors, which the spec
// requires to block rather than drop on a full channel).
type ChanSink chan<- *sample.Sample

func (s ChanSink) Push(ctx context.Context, v *sample.Sample) {
	select {
	case s <- v:
	case <-ctx.Done():
	}
}

// DropOldestSink wraps a bounded channel with drop-oldest-on-full semantics
// and a counter, used by the subscription collector so a stalled buffer
// writer never blocks the source library's callback (spec.md §4.1, §9's
// "callback must never block" design note).
type DropOldestSink struct {
	ch      chan *sample.Sample
	dropped *telemetry.Counter
}

// NewDropOldestSink returns a [*DropOldestSink] wrapping ch.
func NewDropOldestSink(ch chan *sample.Sample, dropped *telemetry.Counter) *DropOldestSink {
	return &DropOldestSink{ch: ch, dropped: dropped}
}

func (s *DropOldestSink) Push(ctx context.Context, v *sample.Sample) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- v:
	default:
		s.dropped.Add(1)
	}
}

// New constructs the [Collector] variant matching cfg.Kind.
func New(cfg config.SourceConfig, sink Sink, logger telemetry.SLogger, timeNow func() time.Time) (Collector, error) {
	if timeNow == nil {
		timeNow = time.Now
	}
	switch cfg.Kind {
	case config.SourceSubscription:
		return newSubscriptionCollector(cfg, sink, logger, timeNow), nil
	case config.SourcePolling:
		return newPollingCollector(cfg, sink, logger, timeNow), nil
	case config.SourcePullAPI:
		return newPullAPICollector(cfg, sink, logger, timeNow), nil
	default:
		return nil, &telemetry.ConfigurationError{Reason: fmt.Sprintf("unknown source kind %q for source %q", cfg.Kind, cfg.Name)}
	}
}
