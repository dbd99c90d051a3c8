// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
)

// calibrationFunc is stage 4: the linear transform corrected =
// offset + scale*raw (spec.md §4.2 stage 4). The pre-calibration value is
// preserved in OriginalValue and the CalibratedFromRaw flag is set, so a
// sample already carrying Interpolated ends up flagged with both.
type calibrationFunc struct {
	snapshot func() *config.Snapshot
}

var _ pipe.Func[*sample.Sample, *sample.Sample] = &calibrationFunc{}

func (f *calibrationFunc) Call(ctx context.Context, s *sample.Sample) (*sample.Sample, error) {
	if s.Flag.Has(sample.Missing) {
		return s, nil
	}

	cal, ok := f.snapshot().Calibrations[s.Tag]
	if !ok || (cal.Offset == 0 && cal.Scale == 0) {
		return s, nil
	}
	scale := cal.Scale
	if scale == 0 {
		scale = 1
	}

	s.OriginalValue = s.Value
	s.HasOriginal = true
	s.Value = cal.Offset + scale*s.Value
	s.Flag |= sample.CalibratedFromRaw
	return s, nil
}
