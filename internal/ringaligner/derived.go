// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"math"

	"github.com/tbmedge/edgecore/internal/config"
)

// advanceDistance estimates the ring's total face advance from the mean
// advance rate and the ring's duration: advance_rate is configured as a
// rate per second, so distance = mean_rate * duration_seconds. Returns nil
// if advance_rate has no data for the ring.
func advanceDistance(advanceRate *float64, durationSeconds float64) *float64 {
	if advanceRate == nil {
		return nil
	}
	d := *advanceRate * durationSeconds
	return &d
}

// specificEnergy computes (mean_torque * 2*pi * revolutions) /
// (advance_distance * cross_section_area), per spec.md §4.5 step 5.
// Returns nil on any nil input or zero divisor, never NaN or 0.
func specificEnergy(meanTorque, distance *float64, cfg config.AlignerConfig) *float64 {
	if meanTorque == nil || distance == nil {
		return nil
	}
	divisor := *distance * cfg.CrossSectionArea
	if divisor == 0 {
		return nil
	}
	v := (*meanTorque * 2 * math.Pi * cfg.RevolutionsPerSecond) / divisor
	return &v
}

// groundLossRate computes settlement_value / advance_distance, scaled by
// the configured ground-loss coefficient: the observed surface settlement
// per unit of tunnel advanced. Returns nil on a nil input or zero
// advance_distance.
func groundLossRate(settlement, distance *float64, cfg config.AlignerConfig) *float64 {
	if settlement == nil || distance == nil || *distance == 0 {
		return nil
	}
	v := cfg.GroundLossCoefficient * (*settlement / *distance)
	return &v
}

// volumeLossRatio computes mean_grout_volume / (cross_section_area *
// advance_distance), scaled by the configured volume-loss coefficient:
// injected grout volume as a fraction of theoretical excavated volume.
// Returns nil on a nil input or zero divisor.
func volumeLossRatio(meanGroutVolume, distance *float64, cfg config.AlignerConfig) *float64 {
	if meanGroutVolume == nil || distance == nil {
		return nil
	}
	divisor := cfg.CrossSectionArea * *distance
	if divisor == 0 {
		return nil
	}
	v := cfg.VolumeLossCoefficient * (*meanGroutVolume / divisor)
	return &v
}

// geoZone returns the zone label whose lower-bound timestamp is the
// greatest one <= startTS, or "" if no zone is configured at or before
// startTS.
func geoZone(zones map[int64]string, startTS int64) string {
	best := int64(math.MinInt64)
	zone := ""
	found := false
	for bound, label := range zones {
		if bound <= startTS && (!found || bound > best) {
			best = bound
			zone = label
			found = true
		}
	}
	return zone
}
