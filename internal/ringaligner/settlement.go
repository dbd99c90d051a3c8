// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import "github.com/tbmedge/edgecore/internal/sample"

// settlement is the first valid settlement/displacement pair found in a
// ring's lag window, or the zero value if none arrived yet.
type settlement struct {
	Value        *float64
	Displacement *float64
	Found        bool
}

// findSettlement associates delayed monitoring samples with a ring: the
// first settlement_value sample with timestamp in [startTS, startTS+lag)
// (inclusive lower, exclusive upper, per spec.md §8), taking the
// displacement_value from the same timestamp if present, else whatever
// displacement_value sample falls in the same window (spec.md §4.5 step 6).
func findSettlement(monitoring []sample.Row, startTS int64, lagWindowMS int64) settlement {
	end := startTS + lagWindowMS

	var out settlement
	var dispByTS = make(map[int64]float64)
	var firstDisp *float64
	for _, r := range monitoring {
		if r.Tag != TagDisplacementValue || r.TimestampMS < startTS || r.TimestampMS >= end {
			continue
		}
		if r.Flag.Has(sample.OutOfRange) || r.Flag.Has(sample.Missing) {
			continue
		}
		v := r.Value
		dispByTS[r.TimestampMS] = v
		if firstDisp == nil {
			firstDisp = &v
		}
	}

	for _, r := range monitoring {
		if r.Tag != TagSettlementValue || r.TimestampMS < startTS || r.TimestampMS >= end {
			continue
		}
		if r.Flag.Has(sample.OutOfRange) || r.Flag.Has(sample.Missing) {
			continue
		}
		value := r.Value
		out.Value = &value
		out.Found = true
		if d, ok := dispByTS[r.TimestampMS]; ok {
			out.Displacement = &d
		} else {
			out.Displacement = firstDisp
		}
		return out
	}
	return out
}
