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

func TestPipelineOutOfRangeIsDroppedNotPersisted(t *testing.T) {
	snap := testSnapshot()
	p := New(func() *config.Snapshot { return snap }, telemetry.DefaultSLogger(), telemetry.NewRateGate(0), func(context.Context, *sample.Sample) error { return nil })

	out, persist, err := p.Process(context.Background(), &sample.Sample{Tag: "thrust_total", TimestampMS: 0, Value: -1})
	require.NoError(t, err)
	assert.False(t, persist)
	assert.True(t, out.Flag.Has(sample.Missing))
}

func TestPipelineResolvedGapAlsoEmitsTriggeringSample(t *testing.T) {
	snap := testSnapshot()
	var extra []*sample.Sample
	p := New(func() *config.Snapshot { return snap }, telemetry.DefaultSLogger(), telemetry.NewRateGate(0), func(ctx context.Context, s *sample.Sample) error {
		extra = append(extra, s)
		return nil
	})

	_, persist, err := p.Process(context.Background(), &sample.Sample{Tag: "thrust_total", TimestampMS: 0, Value: 1000})
	require.NoError(t, err)
	assert.True(t, persist)

	_, persist, err = p.Process(context.Background(), &sample.Sample{Tag: "thrust_total", TimestampMS: 3000, Value: -1})
	require.NoError(t, err)
	assert.False(t, persist)

	resolved, persist, err := p.Process(context.Background(), &sample.Sample{Tag: "thrust_total", TimestampMS: 6000, Value: 2000})
	require.NoError(t, err)
	assert.True(t, persist)
	assert.Equal(t, sample.Interpolated, resolved.Flag)
	assert.InDelta(t, 1500, resolved.Value, 1e-6)

	require.Len(t, extra, 1)
	assert.Equal(t, int64(6000), extra[0].TimestampMS)
	assert.Equal(t, 2000.0, extra[0].Value)
}
