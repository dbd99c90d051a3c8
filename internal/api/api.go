// SPDX-License-Identifier: GPL-3.0-or-later

// Package api is the external interface spec.md §6 describes: querying
// persisted ring summaries, submitting manually-logged rows through the
// quality pipeline without source decoding, and reporting aggregated
// health across the collectors, buffer writer, store, and aligner.
package api

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/tbmedge/edgecore/internal/collector"
	"github.com/tbmedge/edgecore/internal/quality"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

// Store is the subset of *store.Store the API needs for querying.
type Store interface {
	ListRingSummaries(ctx context.Context, afterRing int64, limit int) ([]ringsummary.RingSummary, error)
	GetRingSummary(ctx context.Context, ringNumber int64) (*ringsummary.RingSummary, bool, error)
	CountRange(ctx context.Context, table sample.Table, startMS, endMS int64) (int64, error)
	WriteBatch(ctx context.Context, table sample.Table, rows []sample.Row) error
}

// Filter narrows ListRings's result set. A zero value matches everything.
type Filter struct {
	MinRingNumber int64
	MaxRingNumber int64 // 0 means unbounded
	Completeness  ringsummary.Completeness
	SyncedToCloud *bool
	PageSize      int
}

func (f Filter) matches(rs ringsummary.RingSummary) bool {
	if rs.RingNumber < f.MinRingNumber {
		return false
	}
	if f.MaxRingNumber != 0 && rs.RingNumber > f.MaxRingNumber {
		return false
	}
	if f.Completeness != "" && rs.Completeness != f.Completeness {
		return false
	}
	if f.SyncedToCloud != nil && rs.SyncedToCloud != *f.SyncedToCloud {
		return false
	}
	return true
}

// API is the external interface's implementation, wired to a Store and
// the shared quality routers manual submission needs.
type API struct {
	store Store
	plc   *quality.Router
	att   *quality.Router
	mon   *quality.Router
}

// New returns an [*API]. plc/att/mon are the same per-tag quality
// routers the collectors feed, reused here for manual-submit so the
// threshold/reasonableness/calibration verdict is identical regardless of
// entry point (spec.md §6 "runs threshold validation, physical
// reasonableness, and calibration").
func New(store Store, plc, att, mon *quality.Router) *API {
	return &API{store: store, plc: plc, att: att, mon: mon}
}

// ListRings returns an iterator over RingSummary rows matching filter,
// walking keyset pages of filter.PageSize (default 100) under the hood so
// a caller can range over an arbitrarily large result set without holding
// it all in memory at once.
func (a *API) ListRings(ctx context.Context, filter Filter) iter.Seq[ringsummary.RingSummary] {
	return func(yield func(ringsummary.RingSummary) bool) {
		pageSize := filter.PageSize
		if pageSize <= 0 {
			pageSize = 100
		}
		after := filter.MinRingNumber - 1

		for {
			page, err := a.store.ListRingSummaries(ctx, after, pageSize)
			if err != nil || len(page) == 0 {
				return
			}
			for _, rs := range page {
				after = rs.RingNumber
				if !filter.matches(rs) {
					continue
				}
				if !yield(rs) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
		}
	}
}

// RingSummaryView is GetRing's return shape: the RingSummary, optionally
// annotated with the count of underlying raw samples per table (spec.md
// §6's include_raw_counts).
type RingSummaryView struct {
	ringsummary.RingSummary
	RawCounts map[sample.Table]int64
}

// GetRing returns one ring's summary, or false if ringNumber hasn't been
// summarized yet.
func (a *API) GetRing(ctx context.Context, ringNumber int64, includeRawCounts bool) (*RingSummaryView, bool, error) {
	rs, ok, err := a.store.GetRingSummary(ctx, ringNumber)
	if err != nil {
		return nil, false, fmt.Errorf("api: get ring %d: %w", ringNumber, err)
	}
	if !ok {
		return nil, false, nil
	}

	view := &RingSummaryView{RingSummary: *rs}
	if includeRawCounts {
		view.RawCounts = make(map[sample.Table]int64, 3)
		for _, table := range []sample.Table{sample.TablePLC, sample.TableAttitude, sample.TableMonitoring} {
			n, err := a.store.CountRange(ctx, table, rs.StartTS, rs.EndTS)
			if err != nil {
				return nil, false, fmt.Errorf("api: count %s for ring %d: %w", table, ringNumber, err)
			}
			view.RawCounts[table] = n
		}
	}
	return view, true, nil
}

// ManualLog is one caller-supplied row for manual submission: a tag,
// value, and timestamp, bypassing the collectors' source-specific
// decoding entirely.
type ManualLog struct {
	Tag         string
	Value       float64
	TimestampMS int64
}

// RowResult is one submitted row's outcome.
type RowResult struct {
	Tag         string
	TimestampMS int64
	Accepted    bool
	Flag        sample.Flag
	Reason      string
}

// Results is SubmitManualLogs's return value, one RowResult list per
// destination table.
type Results struct {
	PLC        []RowResult
	Attitude   []RowResult
	Monitoring []RowResult
}

// SubmitManualLogs runs plcLogs/attitudeLogs/monitoringLogs through the
// quality pipeline (threshold, reasonableness, calibration — no source
// decoding, spec.md §6) and persists every accepted row. operatorID goes
// into each Sample's Source and Meta for the pipeline; the persisted row
// keeps neither. A row the pipeline does not accept on this call (an
// out_of_range row, which the interpolation stage holds as a gap, or a row
// flagged Missing) is reported rejected, not silently discarded.
func (a *API) SubmitManualLogs(ctx context.Context, plcLogs, attitudeLogs, monitoringLogs []ManualLog, operatorID string) (Results, error) {
	var results Results

	submit := func(table sample.Table, router *quality.Router, logs []ManualLog) ([]RowResult, error) {
		out := make([]RowResult, 0, len(logs))
		var rows []sample.Row
		for _, log := range logs {
			s := &sample.Sample{
				Source:      "manual:" + operatorID,
				Tag:         log.Tag,
				TimestampMS: log.TimestampMS,
				Value:       log.Value,
				Meta:        map[string]string{"operator_id": operatorID},
			}
			resolved, ok, err := router.Process(ctx, s)
			if err != nil {
				return out, fmt.Errorf("api: process manual log %s@%d: %w", log.Tag, log.TimestampMS, err)
			}
			if !ok {
				out = append(out, RowResult{Tag: log.Tag, TimestampMS: log.TimestampMS, Accepted: false, Flag: resolved.Flag, Reason: "dropped by quality pipeline"})
				continue
			}
			rows = append(rows, sample.RowFromSample(resolved, table))
			out = append(out, RowResult{Tag: log.Tag, TimestampMS: log.TimestampMS, Accepted: true, Flag: resolved.Flag})
		}
		if len(rows) > 0 {
			if err := a.store.WriteBatch(ctx, table, rows); err != nil {
				return out, fmt.Errorf("api: write manual %s batch: %w", table, err)
			}
		}
		return out, nil
	}

	var err error
	if results.PLC, err = submit(sample.TablePLC, a.plc, plcLogs); err != nil {
		return results, err
	}
	if results.Attitude, err = submit(sample.TableAttitude, a.att, attitudeLogs); err != nil {
		return results, err
	}
	if results.Monitoring, err = submit(sample.TableMonitoring, a.mon, monitoringLogs); err != nil {
		return results, err
	}
	return results, nil
}

// ComponentHealth is one component's contribution to a HealthReport.
type ComponentHealth struct {
	Name             string
	Healthy          bool
	Detail           string
}

// HealthReport aggregates collector, buffer, store, and aligner health
// (spec.md §6).
type HealthReport struct {
	Collectors   map[string]collector.Health
	Buffer       map[sample.Table]BufferHealth
	StoreWritable bool
	LastAlignerTick time.Time
	Components   []ComponentHealth
}

// BufferHealth mirrors buffer.FIFOHealth without importing internal/buffer
// from internal/api, keeping the dependency direction single-way
// (cmd/edged wires the concrete values in).
type BufferHealth struct {
	Depth   int
	Dropped int64
}
