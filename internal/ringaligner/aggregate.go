// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"math"

	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

// aggregateTag computes mean/max/min/std over rows matching tag, excluding
// out_of_range, physically_implausible, and missing records; interpolated
// and calibrated_from_raw records are included (spec.md §4.5 step 4). A
// zero-N Stat (no matching, includable rows) is the caller's "null".
func aggregateTag(rows []sample.Row, tag string) ringsummary.Stat {
	var sum, max, min float64
	n := 0
	for _, r := range rows {
		if r.Tag != tag {
			continue
		}
		if r.Flag.Has(sample.OutOfRange) || r.Flag.Has(sample.PhysicallyImplausible) || r.Flag.Has(sample.Missing) {
			continue
		}
		if n == 0 {
			max, min = r.Value, r.Value
		} else {
			if r.Value > max {
				max = r.Value
			}
			if r.Value < min {
				min = r.Value
			}
		}
		sum += r.Value
		n++
	}
	if n == 0 {
		return ringsummary.Stat{}
	}

	mean := sum / float64(n)
	var variance float64
	for _, r := range rows {
		if r.Tag != tag {
			continue
		}
		if r.Flag.Has(sample.OutOfRange) || r.Flag.Has(sample.PhysicallyImplausible) || r.Flag.Has(sample.Missing) {
			continue
		}
		d := r.Value - mean
		variance += d * d
	}
	variance /= float64(n)

	return ringsummary.Stat{Mean: mean, Max: max, Min: min, Std: math.Sqrt(variance), N: n}
}

// meanTag returns the mean of tag's includable values, or nil if none.
func meanTag(rows []sample.Row, tag string) *float64 {
	stat := aggregateTag(rows, tag)
	if stat.Null() {
		return nil
	}
	mean := stat.Mean
	return &mean
}

// maxTag returns the max of tag's includable values, or nil if none.
func maxTag(rows []sample.Row, tag string) *float64 {
	stat := aggregateTag(rows, tag)
	if stat.Null() {
		return nil
	}
	max := stat.Max
	return &max
}
