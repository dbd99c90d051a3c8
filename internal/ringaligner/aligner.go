// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"context"
	"fmt"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// Store is the subset of *store.Store the aligner needs: ring-boundary
// lookups, window reads, and the ring summary write path.
type Store interface {
	MaxPLCRingNumber(ctx context.Context) (int64, bool, error)
	MaxSummarizedRingNumber(ctx context.Context) (int64, bool, error)
	RingStart(ctx context.Context, ringNumber int64) (int64, bool, error)
	QueryRange(ctx context.Context, table sample.Table, startMS, endMS int64) ([]sample.Row, error)
	WriteRingSummary(ctx context.Context, rs *ringsummary.RingSummary) error
	GetRingSummary(ctx context.Context, ringNumber int64) (*ringsummary.RingSummary, bool, error)
	FinalizeRingSummary(ctx context.Context, ringNumber int64, grace time.Duration) error
	ListOpenRingNumbers(ctx context.Context) ([]int64, error)
}

// Aligner is the periodic ring-summarization worker (spec.md §4.5). It
// runs as its own scheduling unit (§9), driven by a plain [time.Ticker]
// rather than sleeps in a hot loop, matching the collectors' own
// ticker-driven loops.
type Aligner struct {
	store    Store
	snapshot func() *config.Snapshot
	logger   telemetry.SLogger
	gate     *telemetry.RateGate

	done chan struct{}
}

// New returns an [*Aligner] reading ring/sample data from store and
// aggregation parameters from snapshot.
func New(store Store, snapshot func() *config.Snapshot, logger telemetry.SLogger, gate *telemetry.RateGate) *Aligner {
	if logger == nil {
		logger = telemetry.DefaultSLogger()
	}
	return &Aligner{store: store, snapshot: snapshot, logger: logger, gate: gate, done: make(chan struct{})}
}

// Run blocks, ticking at cfg.Aligner.TickInterval (default 300s) until ctx
// is cancelled, calling Tick once per interval. Returns once the loop has
// exited so callers can wait for in-flight aggregation to finish before
// declaring shutdown complete (spec.md §5 "aligner finishes current ring
// then exits").
func (a *Aligner) Run(ctx context.Context) {
	defer close(a.done)

	interval := a.aligner().TickInterval
	if interval <= 0 {
		interval = config.DefaultAlignerConfig().TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		a.Tick(ctx)
	}
}

// Done is closed once Run's loop has exited.
func (a *Aligner) Done() <-chan struct{} {
	return a.done
}

func (a *Aligner) aligner() config.AlignerConfig {
	snap := a.snapshot()
	if snap == nil {
		return config.DefaultAlignerConfig()
	}
	return snap.Aligner
}

// Tick runs one summarization pass: first, every ring still
// Summarized-open is re-aggregated from its raw rows, so monitoring data
// (or anything else) that arrived after the first pass is picked up
// in place (spec.md §4.5 step 6, "if none, leave null and later
// re-attempt once during the grace period"). Then every new ring between
// the last summarized ring and the max observed PLC ring number whose
// successor has also been observed is summarized for the first time
// (spec.md §4.5 step 1). Finally a finalization sweep closes out rings
// whose grace window or max_ring_age has elapsed (spec.md §4.5 "Failure
// semantics"). An aggregation error for one ring logs (rate-gated) and
// the tick continues with the next ring (§7 aligner-logic policy).
func (a *Aligner) Tick(ctx context.Context) {
	cfg := a.aligner()

	maxPLC, hasPLC, err := a.store.MaxPLCRingNumber(ctx)
	if err != nil {
		a.logErr("alignerMaxPLCRing", err)
		return
	}
	if !hasPLC {
		return
	}

	open, err := a.store.ListOpenRingNumbers(ctx)
	if err != nil {
		a.logErr("alignerListOpenRings", err)
		return
	}
	for _, n := range open {
		if err := a.summarizeRing(ctx, n, cfg); err != nil {
			if a.gate.Allow("aligner-logic") {
				a.logger.Warn("alignerResummarizeFailed", "ring", n, "err", err.Error())
			}
		}
	}

	maxSummarized, hasSummarized, err := a.store.MaxSummarizedRingNumber(ctx)
	if err != nil {
		a.logErr("alignerMaxSummarizedRing", err)
		return
	}
	start := int64(0)
	if hasSummarized {
		start = maxSummarized + 1
	}

	for n := start; n <= maxPLC; n++ {
		if err := a.summarizeRing(ctx, n, cfg); err != nil {
			if a.gate.Allow("aligner-logic") {
				a.logger.Warn("alignerSummarizeFailed", "ring", n, "err", err.Error())
			}
			continue
		}
	}

	a.finalizeSweep(ctx, cfg)
}

// summarizeRing summarizes ring n, proceeding only once n+1's start has
// been observed (so n's end_ts is known). Returns a non-nil error only for
// genuine query/write failures; "ring n+1 hasn't started yet" is not an
// error, it's a no-op this tick.
func (a *Aligner) summarizeRing(ctx context.Context, n int64, cfg config.AlignerConfig) error {
	startTS, ok, err := a.store.RingStart(ctx, n)
	if err != nil {
		return fmt.Errorf("ring %d start: %w", n, err)
	}
	if !ok {
		return nil
	}

	endTS, ok, err := a.store.RingStart(ctx, n+1)
	if err != nil {
		return fmt.Errorf("ring %d+1 start: %w", n, err)
	}
	if !ok {
		return nil
	}
	if endTS <= startTS {
		return fmt.Errorf("ring %d: non-increasing ring boundary (start=%d end=%d)", n, startTS, endTS)
	}

	plc, err := a.store.QueryRange(ctx, sample.TablePLC, startTS, endTS)
	if err != nil {
		return fmt.Errorf("ring %d: query plc: %w", n, err)
	}
	attitude, err := a.store.QueryRange(ctx, sample.TableAttitude, startTS, endTS)
	if err != nil {
		return fmt.Errorf("ring %d: query attitude: %w", n, err)
	}
	monitoring, err := a.store.QueryRange(ctx, sample.TableMonitoring, startTS, endTS+cfg.SettlementLagWindow.Milliseconds())
	if err != nil {
		return fmt.Errorf("ring %d: query monitoring: %w", n, err)
	}

	rs := buildSummary(n, startTS, endTS, plc, attitude, monitoring, cfg)

	existing, found, err := a.store.GetRingSummary(ctx, n)
	if err != nil {
		return fmt.Errorf("ring %d: get existing summary: %w", n, err)
	}
	if found && existing.State == ringsummary.StateSummarizedFinal {
		return nil
	}
	if found {
		rs.CreatedAt = existing.CreatedAt
		rs.WriteTS = existing.WriteTS
	}

	if err := a.store.WriteRingSummary(ctx, rs); err != nil {
		return fmt.Errorf("ring %d: write summary: %w", n, err)
	}
	return nil
}

// finalizeSweep finalizes every Summarized-open ring whose grace window
// has elapsed, or that has exceeded max_ring_age regardless of
// completeness (spec.md §4.5 "Failure semantics": "If ring n is still
// incomplete after max_ring_age ... it is marked final as-is and not
// retried further").
func (a *Aligner) finalizeSweep(ctx context.Context, cfg config.AlignerConfig) {
	maxAge := cfg.MaxRingAge
	if maxAge <= 0 {
		maxAge = config.DefaultAlignerConfig().MaxRingAge
	}
	grace := cfg.GraceWindow
	if grace <= 0 {
		grace = config.DefaultAlignerConfig().GraceWindow
	}

	open, err := a.store.ListOpenRingNumbers(ctx)
	if err != nil {
		a.logErr("alignerListOpenRings", err)
		return
	}

	for _, n := range open {
		rs, found, err := a.store.GetRingSummary(ctx, n)
		if err != nil || !found {
			continue
		}
		effectiveGrace := grace
		if time.Since(rs.WriteTS) >= maxAge {
			effectiveGrace = 0
		}
		if err := a.store.FinalizeRingSummary(ctx, n, effectiveGrace); err != nil {
			if a.gate.Allow("aligner-logic") {
				a.logger.Warn("alignerFinalizeFailed", "ring", n, "err", err.Error())
			}
		}
	}
}

func (a *Aligner) logErr(msg string, err error) {
	if a.gate.Allow("aligner-logic") {
		a.logger.Warn(msg, "err", err.Error())
	}
}
