// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"

	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// metricsFunc is stage 5: advisory per-record emission. It never alters the
// record or its flag. A gap the interpolation stage holds reaches this
// stage flagged Missing and is counted like any other record; I1 holds
// because [Pipeline.Process] then reports it not accepted, so it is never
// persisted.
type metricsFunc struct {
	logger telemetry.SLogger
	gate   *telemetry.RateGate

	good            telemetry.Counter
	interpolated    telemetry.Counter
	outOfRange      telemetry.Counter
	implausible     telemetry.Counter
	calibratedCount telemetry.Counter
}

var _ pipe.Func[*sample.Sample, *sample.Sample] = &metricsFunc{}

func (f *metricsFunc) Call(ctx context.Context, s *sample.Sample) (*sample.Sample, error) {
	switch {
	case s.Flag.Has(sample.OutOfRange):
		f.outOfRange.Add(1)
	case s.Flag.Has(sample.PhysicallyImplausible):
		f.implausible.Add(1)
	case s.Flag == sample.Good:
		f.good.Add(1)
	}
	if s.Flag.Has(sample.Interpolated) {
		f.interpolated.Add(1)
	}
	if s.Flag.Has(sample.CalibratedFromRaw) {
		f.calibratedCount.Add(1)
	}

	if s.Flag != sample.Good && f.gate.Allow("data-quality:"+s.Tag) {
		f.logger.Debug("sampleFlagged", "tag", s.Tag, "flag", s.Flag.String(), "timestampMs", s.TimestampMS)
	}

	return s, nil
}

// Counts returns the running per-flag counters, merged on read (§5).
func (f *metricsFunc) Counts() map[string]int64 {
	return map[string]int64{
		"good":                 f.good.Value(),
		"interpolated":         f.interpolated.Value(),
		"out_of_range":         f.outOfRange.Value(),
		"physically_implausible": f.implausible.Value(),
		"calibrated_from_raw":  f.calibratedCount.Value(),
	}
}
