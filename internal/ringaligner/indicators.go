// SPDX-License-Identifier: GPL-3.0-or-later

// Package ringaligner is the periodic job that turns completed rings of
// raw samples into RingSummary rows (spec.md §4.5): boundary detection,
// window read, aggregation, derived indicators, settlement association,
// and the Pending -> Summarizable -> Summarized-open -> Summarized-final
// state machine.
package ringaligner

// Tag name constants for the fixed set of PLC, attitude, and monitoring
// indicators a RingSummary aggregates. These are the closed vocabulary
// this module expects a deployment's config.Snapshot to use; any other
// tag a source produces is simply not aggregated into a RingSummary.
const (
	TagRingNumber     = "ring_number"
	TagThrustTotal    = "thrust_total"
	TagTorqueTotal    = "torque_total"
	TagChamberPress   = "chamber_pressure"
	TagAdvanceRate    = "advance_rate"
	TagGroutPressure  = "grout_pressure"
	TagGroutVolume    = "grout_volume"

	TagPitch       = "pitch"
	TagRoll        = "roll"
	TagYaw         = "yaw"
	TagHDeviation  = "h_deviation"
	TagVDeviation  = "v_deviation"

	TagSettlementValue   = "settlement_value"
	TagDisplacementValue = "displacement_value"
)
