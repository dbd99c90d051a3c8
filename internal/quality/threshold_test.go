// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

func testSnapshot() *config.Snapshot {
	return &config.Snapshot{
		Thresholds: map[string]config.ThresholdConfig{
			"thrust_total": {Min: 0, Max: 30000, HasWarnHigh: true, WarnHigh: 25000},
		},
		Calibrations: map[string]config.CalibrationConfig{},
		Reasonableness: map[string]config.ReasonablenessConfig{
			"thrust_total": {MaxRate: 10000},
		},
	}
}

func TestThresholdFlagsOutOfRange(t *testing.T) {
	snap := testSnapshot()
	f := &thresholdFunc{snapshot: func() *config.Snapshot { return snap }, logger: telemetry.DefaultSLogger(), gate: telemetry.NewRateGate(0)}

	s := &sample.Sample{Tag: "thrust_total", Value: -1}
	out, err := f.Call(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Flag.Has(sample.OutOfRange))
}

func TestThresholdPassesInRange(t *testing.T) {
	snap := testSnapshot()
	f := &thresholdFunc{snapshot: func() *config.Snapshot { return snap }, logger: telemetry.DefaultSLogger(), gate: telemetry.NewRateGate(0)}

	s := &sample.Sample{Tag: "thrust_total", Value: 12000}
	out, err := f.Call(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, sample.Good, out.Flag)
}

func TestThresholdUnknownTagPassesThrough(t *testing.T) {
	snap := testSnapshot()
	f := &thresholdFunc{snapshot: func() *config.Snapshot { return snap }, logger: telemetry.DefaultSLogger(), gate: telemetry.NewRateGate(0)}

	s := &sample.Sample{Tag: "unconfigured", Value: 99}
	out, err := f.Call(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, sample.Good, out.Flag)
}
