// SPDX-License-Identifier: GPL-3.0-or-later

package ringaligner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tbmedge/edgecore/internal/config"
)

func f(v float64) *float64 { return &v }

func TestSpecificEnergyNullOnZeroDivisor(t *testing.T) {
	cfg := config.AlignerConfig{RevolutionsPerSecond: 1, CrossSectionArea: 0}
	assert.Nil(t, specificEnergy(f(100), f(10), cfg))
}

func TestSpecificEnergyNullOnNilInput(t *testing.T) {
	cfg := config.AlignerConfig{RevolutionsPerSecond: 1, CrossSectionArea: 10}
	assert.Nil(t, specificEnergy(nil, f(10), cfg))
	assert.Nil(t, specificEnergy(f(100), nil, cfg))
}

func TestSpecificEnergyComputes(t *testing.T) {
	cfg := config.AlignerConfig{RevolutionsPerSecond: 2, CrossSectionArea: 5}
	got := specificEnergy(f(10), f(4), cfg)
	assert.NotNil(t, got)
}

func TestGroundLossRateNullOnZeroDistance(t *testing.T) {
	cfg := config.AlignerConfig{GroundLossCoefficient: 1}
	assert.Nil(t, groundLossRate(f(2.7), f(0), cfg))
}

func TestVolumeLossRatioNullOnNilInput(t *testing.T) {
	cfg := config.AlignerConfig{VolumeLossCoefficient: 1, CrossSectionArea: 10}
	assert.Nil(t, volumeLossRatio(nil, f(5), cfg))
}

func TestGeoZonePicksGreatestBoundAtOrBeforeStart(t *testing.T) {
	zones := map[int64]string{0: "zone-a", 1000: "zone-b", 5000: "zone-c"}
	assert.Equal(t, "zone-a", geoZone(zones, 500))
	assert.Equal(t, "zone-b", geoZone(zones, 1000))
	assert.Equal(t, "zone-c", geoZone(zones, 10000))
	assert.Equal(t, "", geoZone(nil, 10))
}
