// SPDX-License-Identifier: GPL-3.0-or-later

// Package sample defines the Sample record that flows from collectors
// through the quality pipeline to the buffer writer and store, plus the
// persisted per-table views derived from it.
package sample

import "time"

// Flag is the quality pipeline's verdict on a Sample. It is bitmask-friendly
// because a record can carry more than one marker at once: a value that was
// linearly interpolated and then calibrated carries both Interpolated and
// CalibratedFromRaw.
//
// Good is the zero value. Missing is an internal-only marker used while a
// record moves through the pipeline; a Sample flagged Missing is dropped
// before it reaches the buffer writer and is never persisted (I1).
type Flag uint8

const (
	// Good means every stage passed without comment.
	Good Flag = 0

	// Interpolated means the value was imputed from the surrounding good
	// samples by the interpolation stage.
	Interpolated Flag = 1 << iota

	// OutOfRange means threshold validation rejected the raw value.
	OutOfRange

	// PhysicallyImplausible means the reasonableness stage's derivative or
	// cross-tag rule rejected the value, though the value is preserved.
	PhysicallyImplausible

	// CalibratedFromRaw means the calibration stage applied a linear
	// transform; OriginalValue holds the pre-calibration value.
	CalibratedFromRaw

	// Missing marks a record that must not reach persistence: an
	// unrecoverable gap (interpolation couldn't find a forward sample
	// within gap_max_seconds) or a poll failure for the affected tags.
	Missing
)

// Has reports whether f carries marker m.
func (f Flag) Has(m Flag) bool {
	return f&m != 0
}

// String renders the flag as the comma-joined names of its set bits, or
// "good" for the zero value.
func (f Flag) String() string {
	if f == Good {
		return "good"
	}
	var out string
	add := func(name string) {
		if out != "" {
			out += ","
		}
		out += name
	}
	if f.Has(Interpolated) {
		add("interpolated")
	}
	if f.Has(OutOfRange) {
		add("out_of_range")
	}
	if f.Has(PhysicallyImplausible) {
		add("physically_implausible")
	}
	if f.Has(CalibratedFromRaw) {
		add("calibrated_from_raw")
	}
	if f.Has(Missing) {
		add("missing")
	}
	if out == "" {
		return "good"
	}
	return out
}

// Sample is one timestamped value for one tag, produced by a collector and
// owned by the pipeline, then the buffer writer, then the store. Immutable
// once the pipeline finishes with it.
type Sample struct {
	// Source is the configured source identifier that produced this
	// Sample (matches a config.SourceConfig.Name).
	Source string

	// Tag is the channel name (e.g. "thrust_total").
	Tag string

	// TimestampMS is milliseconds since epoch, monotonic per source.
	TimestampMS int64

	// Value is the current (possibly calibrated, possibly interpolated)
	// value.
	Value float64

	// OriginalValue is the value before calibration, set only when Flag
	// carries CalibratedFromRaw.
	OriginalValue float64
	HasOriginal   bool

	// Flag is the pipeline's cumulative verdict.
	Flag Flag

	// RingNumberAtCapture is the ring number in effect when this sample
	// was captured, or nil if not yet known (e.g. before the first ring
	// boundary has been observed).
	RingNumberAtCapture *int64

	// Meta carries source-specific metadata: a register address for
	// polling sources, a JSON path for pull-API sources, or a
	// subscription handle id. Kept as a string map so Sample itself
	// stays source-agnostic.
	Meta map[string]string
}

// Time returns the Sample's timestamp as a [time.Time] in UTC.
func (s *Sample) Time() time.Time {
	return time.UnixMilli(s.TimestampMS).UTC()
}

// Table identifies which persisted table a Sample belongs to.
type Table string

const (
	TablePLC        Table = "plc_samples"
	TableAttitude   Table = "attitude_samples"
	TableMonitoring Table = "monitoring_samples"
)

// Row is the persisted form shared by the PLC, attitude, and monitoring
// tables: they differ only in tag vocabulary and expected cadence, so one
// struct plus a Table discriminator covers all three (spec.md §3).
type Row struct {
	Table               Table
	TimestampMS         int64
	Tag                 string
	Value               float64
	Flag                Flag
	RingNumberAtCapture *int64
}

// RowFromSample projects a pipeline-finished Sample into its persisted Row
// for the given destination table.
func RowFromSample(s *Sample, table Table) Row {
	return Row{
		Table:               table,
		TimestampMS:         s.TimestampMS,
		Tag:                 s.Tag,
		Value:                s.Value,
		Flag:                s.Flag,
		RingNumberAtCapture: s.RingNumberAtCapture,
	}
}
