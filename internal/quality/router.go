// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"
	"sync"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// Router owns the set of per-tag [Pipeline] instances spec.md §9 calls for
// ("no shared mutable state across tags beyond the small rolling history
// owned by that tag's pipeline instance"): one Pipeline per tag, created
// lazily on a tag's first sample, never shared across tags. One Router may
// serve several callers (cmd/edged shares one per destination table among
// every source feeding that table and manual submission); Process holds
// the Router's mutex for the whole call, so a tag's Pipeline never runs
// two samples at once.
type Router struct {
	snapshot     func() *config.Snapshot
	logger       telemetry.SLogger
	gate         *telemetry.RateGate
	emitResolved func(ctx context.Context, s *sample.Sample) error

	mu        sync.Mutex
	pipelines map[string]*Pipeline
}

// NewRouter returns a [*Router]. emitResolved is called for the "extra"
// sample an interpolation resolution produces (see [Pipeline.Process]);
// it may be nil if the caller has nowhere to route that second output.
func NewRouter(snapshot func() *config.Snapshot, logger telemetry.SLogger, gate *telemetry.RateGate, emitResolved func(ctx context.Context, s *sample.Sample) error) *Router {
	return &Router{
		snapshot:     snapshot,
		logger:       logger,
		gate:         gate,
		emitResolved: emitResolved,
		pipelines:    make(map[string]*Pipeline),
	}
}

// Process runs s through its tag's Pipeline, creating one on first use.
func (r *Router) Process(ctx context.Context, s *sample.Sample) (*sample.Sample, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[s.Tag]
	if !ok {
		p = New(r.snapshot, r.logger, r.gate, r.emitResolved)
		r.pipelines[s.Tag] = p
	}

	return p.Process(ctx, s)
}

// Counts merges every tag pipeline's quality-metric counters, keyed
// "tag:flag".
func (r *Router) Counts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64)
	for tag, p := range r.pipelines {
		for flag, n := range p.Counts() {
			out[tag+":"+flag] = n
		}
	}
	return out
}
