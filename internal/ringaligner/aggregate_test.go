// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tbmedge/edgecore/internal/sample"
)

func TestAggregateTagExcludesBadFlags(t *testing.T) {
	rows := []sample.Row{
		{Tag: TagThrustTotal, Value: 10000},
		{Tag: TagThrustTotal, Value: 10100},
		{Tag: TagThrustTotal, Value: 10200},
		{Tag: TagThrustTotal, Value: -1, Flag: sample.OutOfRange},
		{Tag: TagThrustTotal, Value: 99999, Flag: sample.PhysicallyImplausible},
		{Tag: TagTorqueTotal, Value: 500},
	}

	stat := aggregateTag(rows, TagThrustTotal)
	assert.Equal(t, 3, stat.N)
	assert.InDelta(t, 10100, stat.Mean, 1e-9)
	assert.Equal(t, float64(10200), stat.Max)
	assert.Equal(t, float64(10000), stat.Min)
}

func TestAggregateTagIncludesInterpolatedAndCalibrated(t *testing.T) {
	rows := []sample.Row{
		{Tag: TagThrustTotal, Value: 1, Flag: sample.Interpolated},
		{Tag: TagThrustTotal, Value: 2, Flag: sample.CalibratedFromRaw},
	}
	stat := aggregateTag(rows, TagThrustTotal)
	assert.Equal(t, 2, stat.N)
}

func TestAggregateTagNoMatchIsNull(t *testing.T) {
	stat := aggregateTag(nil, TagThrustTotal)
	assert.True(t, stat.Null())
}

func TestHappyPathSingleRingAggregates(t *testing.T) {
	var rows []sample.Row
	for i := 0; i < 300; i++ {
		rows = append(rows, sample.Row{Tag: TagThrustTotal, TimestampMS: int64(i) * 1000, Value: float64(10000 + i)})
	}
	stat := aggregateTag(rows, TagThrustTotal)
	assert.Equal(t, 300, stat.N)
	assert.InDelta(t, 10149.5, stat.Mean, 1e-9)
	assert.Equal(t, float64(10299), stat.Max)
	assert.Equal(t, float64(10000), stat.Min)
}
