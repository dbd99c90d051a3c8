// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tbmedge/edgecore/internal/config"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := newBackoff(config.BackoffConfig{Min: 100 * time.Millisecond, Max: 1 * time.Second, Jitter: 0.2})

	d1 := b.Next()
	assert.InDelta(t, 100*time.Millisecond, d1, float64(25*time.Millisecond))

	d2 := b.Next()
	assert.InDelta(t, 200*time.Millisecond, d2, float64(45*time.Millisecond))

	for i := 0; i < 10; i++ {
		b.Next()
	}
	d := b.Next()
	assert.LessOrEqual(t, d, 1*time.Second+200*time.Millisecond)
}

func TestBackoffResetReturnsToMin(t *testing.T) {
	b := newBackoff(config.BackoffConfig{Min: 50 * time.Millisecond, Max: time.Second, Jitter: 0.2})
	b.Next()
	b.Next()
	b.Reset()
	d := b.Next()
	assert.InDelta(t, 50*time.Millisecond, d, float64(12*time.Millisecond))
}

func TestBackoffDefaultsWhenUnset(t *testing.T) {
	b := newBackoff(config.BackoffConfig{})
	d := b.Next()
	assert.Greater(t, d, time.Duration(0))
}
