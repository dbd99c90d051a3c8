// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// thresholdFunc is stage 1: per-tag min/max/warn_low/warn_high validation
// (spec.md §4.2 stage 1). Out-of-range values are flagged and treated as a
// gap downstream; warn-bounds never alter the value, only emit an
// observability event.
type thresholdFunc struct {
	snapshot func() *config.Snapshot
	logger   telemetry.SLogger
	gate     *telemetry.RateGate
}

var _ pipe.Func[*sample.Sample, *sample.Sample] = &thresholdFunc{}

func (f *thresholdFunc) Call(ctx context.Context, s *sample.Sample) (*sample.Sample, error) {
	if s.Flag.Has(sample.Missing) {
		return s, nil
	}

	cfg, ok := f.snapshot().Thresholds[s.Tag]
	if !ok {
		return s, nil
	}

	if s.Value < cfg.Min || s.Value > cfg.Max {
		s.Flag |= sample.OutOfRange
		return s, nil
	}

	if (cfg.HasWarnLow && s.Value < cfg.WarnLow) || (cfg.HasWarnHigh && s.Value > cfg.WarnHigh) {
		if f.gate.Allow("threshold-warn:" + s.Tag) {
			f.logger.Warn("thresholdWarn", "tag", s.Tag, "value", s.Value, "timestampMs", s.TimestampMS)
		}
	}

	return s, nil
}
