// SPDX-License-Identifier: GPL-3.0-or-later

// Package ringsummary defines the RingSummary row produced by the ring
// aligner: one row per completed shield-tunneling ring, with aggregated
// indicators, derived indicators, and a completeness flag.
package ringsummary

import "time"

// Completeness is data_completeness_flag from the data model: complete iff
// all four of {PLC present, attitude present, monitoring association found,
// no required aggregate null} hold (I3).
type Completeness string

const (
	Complete           Completeness = "complete"
	PartialPLC         Completeness = "partial_plc"
	PartialAttitude    Completeness = "partial_attitude"
	MissingMonitoring  Completeness = "missing_monitoring"
	MissingPLC         Completeness = "missing_plc"
)

// Stat is a mean/max/min/std aggregate over one indicator's samples within
// a ring window.
type Stat struct {
	Mean float64
	Max  float64
	Min  float64
	Std  float64
	// N is the number of samples the aggregate was computed from; zero
	// means the indicator has no data and Mean/Max/Min/Std must be
	// ignored (treated as null), never read as zero values.
	N int
}

// Null reports whether the stat has no backing samples.
func (s Stat) Null() bool {
	return s.N == 0
}

// State is the ring's position in the Pending -> Summarizable ->
// Summarized-open -> Summarized-final state machine (spec.md §4.5).
type State string

const (
	StatePending          State = "pending"
	StateSummarizable     State = "summarizable"
	StateSummarizedOpen   State = "summarized_open"
	StateSummarizedFinal  State = "summarized_final"
)

// RingSummary is one row per completed ring (spec.md §3).
type RingSummary struct {
	RingNumber int64
	StartTS    int64
	EndTS      int64

	Thrust         Stat
	Torque         Stat
	ChamberPress   Stat
	AdvanceRate    Stat
	GroutPressure  Stat
	GroutVolume    Stat

	MeanPitch  *float64
	MeanRoll   *float64
	MeanYaw    *float64
	MaxHDevi   *float64
	MaxVDevi   *float64

	SettlementValue   *float64
	DisplacementValue *float64

	// SpecificEnergy, GroundLossRate, and VolumeLossRatio are derived
	// indicators. A nil pointer is the spec's mandated "null", never a
	// sentinel 0 or NaN, when a divisor is zero or an input is null.
	SpecificEnergy  *float64
	GroundLossRate  *float64
	VolumeLossRatio *float64

	GeoZone string

	Completeness Completeness
	State        State

	CreatedAt    time.Time
	WriteTS      time.Time
	SyncedToCloud bool
}

// Window returns the ring's half-open time window [StartTS, EndTS).
func (r *RingSummary) Window() (start, end time.Time) {
	return time.UnixMilli(r.StartTS).UTC(), time.UnixMilli(r.EndTS).UTC()
}

// Contains reports whether timestampMS falls within the ring's window,
// per I2 (start_ts <= t < end_ts).
func (r *RingSummary) Contains(timestampMS int64) bool {
	return timestampMS >= r.StartTS && timestampMS < r.EndTS
}
