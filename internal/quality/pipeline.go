// SPDX-License-Identifier: GPL-3.0-or-later

// Package quality implements the fixed, ordered per-record transform
// (spec.md §4.2): threshold-validation -> interpolation ->
// physical-reasonableness -> calibration -> quality-metrics. It is a pure
// function of (record, config snapshot, small per-tag rolling state); it
// performs no I/O.
package quality

import (
	"context"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// Pipeline runs one Sample through the five fixed stages, wired with
// [pipe.Compose5] the way the teacher composes its own dial/handshake/
// observe steps. One Pipeline serves one tag of one [Router]; its
// rolling state (interpolation history, last-accepted-value map) is never
// shared across pipelines (§9).
type Pipeline struct {
	chain      pipe.Func[*sample.Sample, *sample.Sample]
	interp     *interpolateFunc
	downstream pipe.Func[*sample.Sample, *sample.Sample]
	emit       func(ctx context.Context, s *sample.Sample) error
	metric     *metricsFunc
}

// New returns a [*Pipeline] reading configuration from snapshot on every
// call (hot-reload: a run loads the pointer once and completes against
// that snapshot) and emitting the interpolation stage's deferred second
// output through emitResolved (typically the buffer writer's intake).
func New(snapshot func() *config.Snapshot, logger telemetry.SLogger, gate *telemetry.RateGate, emitResolved func(ctx context.Context, s *sample.Sample) error) *Pipeline {
	threshold := &thresholdFunc{snapshot: snapshot, logger: logger, gate: gate}
	interp := newInterpolateFunc(func(tag string) time.Duration {
		cfg := snapshot()
		if cfg == nil {
			return 0
		}
		return cfg.Thresholds[tag].GapMaxSeconds
	})
	reasonableness := newReasonablenessFunc(snapshot)
	calibration := &calibrationFunc{snapshot: snapshot}
	metrics := &metricsFunc{logger: logger, gate: gate}

	downstream := pipe.Compose3(reasonableness, calibration, metrics)
	chain := pipe.Compose5(threshold, interp, reasonableness, calibration, metrics)

	return &Pipeline{chain: chain, interp: interp, downstream: downstream, emit: emitResolved, metric: metrics}
}

// Process runs s through all five stages and reports whether the returned
// Sample is fit for persistence. A false result (Flag carries
// [sample.Missing]) means the record must be dropped, not written (I1).
//
// When the interpolation stage resolves a held gap, it defers the good
// sample that closed it (see [interpolateFunc.pendingExtra]); Process
// drains that deferred sample through the remaining stages immediately
// after the primary result, preserving chronological order in the
// reasonableness stage's rolling state.
func (p *Pipeline) Process(ctx context.Context, s *sample.Sample) (*sample.Sample, bool, error) {
	out, err := p.chain.Call(ctx, s)
	if err != nil {
		return nil, false, err
	}

	if extra := p.interp.TakePendingExtra(); extra != nil {
		resolved, err := p.downstream.Call(ctx, extra)
		if err == nil && resolved != nil && !resolved.Flag.Has(sample.Missing) && p.emit != nil {
			_ = p.emit(ctx, resolved)
		}
	}

	return out, !out.Flag.Has(sample.Missing), nil
}

// Counts returns the running per-flag quality counters (§5).
func (p *Pipeline) Counts() map[string]int64 {
	return p.metric.Counts()
}
