// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/ringsummary"
	"github.com/tbmedge/edgecore/internal/sample"
)

func TestBuildSummaryMissingPLCWhenNoPLCRows(t *testing.T) {
	rs := buildSummary(1, 0, 1000, nil, nil, nil, config.AlignerConfig{})
	assert.Equal(t, ringsummary.MissingPLC, rs.Completeness)
	assert.Equal(t, ringsummary.StateSummarizedOpen, rs.State)
}

func TestBuildSummaryMissingMonitoringUntilSettlementArrives(t *testing.T) {
	plc := []sample.Row{
		{Tag: TagThrustTotal, TimestampMS: 0, Value: 100},
		{Tag: TagTorqueTotal, TimestampMS: 0, Value: 50},
		{Tag: TagAdvanceRate, TimestampMS: 0, Value: 1},
	}
	attitude := []sample.Row{{Tag: TagPitch, TimestampMS: 0, Value: 0.1}}

	rs := buildSummary(200, 1_000_000, 1_300_000, plc, attitude, nil, config.AlignerConfig{SettlementLagWindow: 120_000_000_000})
	assert.Equal(t, ringsummary.MissingMonitoring, rs.Completeness)
	assert.Nil(t, rs.SettlementValue)
}

func TestBuildSummaryCompleteWithAllInputsPresent(t *testing.T) {
	plc := []sample.Row{
		{Tag: TagThrustTotal, TimestampMS: 0, Value: 100},
		{Tag: TagTorqueTotal, TimestampMS: 0, Value: 50},
		{Tag: TagAdvanceRate, TimestampMS: 0, Value: 1},
	}
	attitude := []sample.Row{{Tag: TagPitch, TimestampMS: 0, Value: 0.1}}
	monitoring := []sample.Row{{Tag: TagSettlementValue, TimestampMS: 1_000_000_000 + 60_000, Value: 2.7}}

	cfg := config.AlignerConfig{SettlementLagWindow: 120_000_000_000, RevolutionsPerSecond: 1, CrossSectionArea: 10}
	rs := buildSummary(200, 1_000_000_000, 1_300_000_000, plc, attitude, monitoring, cfg)
	assert.Equal(t, ringsummary.Complete, rs.Completeness)
	require.NotNil(t, rs.SettlementValue)
	assert.InDelta(t, 2.7, *rs.SettlementValue, 1e-9)
}
