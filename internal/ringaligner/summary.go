// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

// buildSummary is the pure aggregation function at the heart of the
// aligner: given a ring's raw rows and the aligner's configuration, it
// produces the RingSummary to write. Unit-testable without a live
// database (spec.md §4.5-FULL).
//
// CreatedAt and WriteTS are stamped as if this were the ring's first
// summarization; summarizeRing overwrites both from the existing row
// when re-aggregating an already Summarized-open ring, since spec.md
// §4.5's "write_ts + grace_window" is anchored to the first write, not
// to whichever re-aggregation happens to run last.
func buildSummary(ringNumber, startTS, endTS int64, plc, attitude, monitoring []sample.Row, cfg config.AlignerConfig) *ringsummary.RingSummary {
	rs := &ringsummary.RingSummary{
		RingNumber: ringNumber,
		StartTS:    startTS,
		EndTS:      endTS,
		CreatedAt:  time.Now().UTC(),
		WriteTS:    time.Now().UTC(),
	}

	rs.Thrust = aggregateTag(plc, TagThrustTotal)
	rs.Torque = aggregateTag(plc, TagTorqueTotal)
	rs.ChamberPress = aggregateTag(plc, TagChamberPress)
	rs.AdvanceRate = aggregateTag(plc, TagAdvanceRate)
	rs.GroutPressure = aggregateTag(plc, TagGroutPressure)
	rs.GroutVolume = aggregateTag(plc, TagGroutVolume)

	hasPLC := len(plc) > 0
	requiredPLCNull := rs.Thrust.Null() || rs.Torque.Null() || rs.AdvanceRate.Null()

	rs.MeanPitch = meanTag(attitude, TagPitch)
	rs.MeanRoll = meanTag(attitude, TagRoll)
	rs.MeanYaw = meanTag(attitude, TagYaw)
	rs.MaxHDevi = maxTag(attitude, TagHDeviation)
	rs.MaxVDevi = maxTag(attitude, TagVDeviation)
	hasAttitude := len(attitude) > 0

	sett := findSettlement(monitoring, startTS, cfg.SettlementLagWindow.Milliseconds())
	rs.SettlementValue = sett.Value
	rs.DisplacementValue = sett.Displacement

	durationSeconds := float64(endTS-startTS) / 1000
	distance := advanceDistance(meanTag(plc, TagAdvanceRate), durationSeconds)
	meanTorque := meanTag(plc, TagTorqueTotal)
	meanGroutVolume := meanTag(plc, TagGroutVolume)

	rs.SpecificEnergy = specificEnergy(meanTorque, distance, cfg)
	rs.GroundLossRate = groundLossRate(rs.SettlementValue, distance, cfg)
	rs.VolumeLossRatio = volumeLossRatio(meanGroutVolume, distance, cfg)

	rs.GeoZone = geoZone(cfg.GeoZones, startTS)

	rs.Completeness = completeness(completenessInputs{
		HasPLC:          hasPLC,
		RequiredPLCNull: requiredPLCNull,
		HasAttitude:     hasAttitude,
		SettlementFound: sett.Found,
	})
	rs.State = ringsummary.StateSummarizedOpen

	return rs
}
