// SPDX-License-Identifier: GPL-3.0-or-later

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateGateSuppressesBurst(t *testing.T) {
	g := NewRateGate(time.Minute)

	assert.True(t, g.Allow("storage-transient:buffer"))
	assert.False(t, g.Allow("storage-transient:buffer"))

	// a distinct category is independent
	assert.True(t, g.Allow("storage-transient:store"))
}

func TestRateGateDisabledWhenNonPositive(t *testing.T) {
	g := NewRateGate(0)
	assert.True(t, g.Allow("x"))
	assert.True(t, g.Allow("x"))
}

func TestErrorRateSlidesWindow(t *testing.T) {
	r := NewErrorRate(60 * time.Second)
	base := time.Unix(0, 0)

	r.Record(base)
	r.Record(base.Add(10 * time.Second))
	assert.Equal(t, 2, r.Count(base.Add(20*time.Second)))

	// advance past the window: the first event should drop off
	assert.Equal(t, 1, r.Count(base.Add(65*time.Second)))
}

func TestCounterAddAndValue(t *testing.T) {
	var c Counter
	assert.Equal(t, int64(0), c.Value())
	c.Add(3)
	c.Add(2)
	assert.Equal(t, int64(5), c.Value())
}
