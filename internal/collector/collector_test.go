// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

func TestNewUnknownKindFailsFast(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "x", Kind: "bogus"}, ChanSink(make(chan *sample.Sample)), telemetry.DefaultSLogger(), nil)
	require.Error(t, err)
	var cfgErr *telemetry.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNewSelectsVariantByKind(t *testing.T) {
	ch := make(chan *sample.Sample, 1)
	for _, kind := range []config.SourceKind{config.SourceSubscription, config.SourcePolling, config.SourcePullAPI} {
		c, err := New(config.SourceConfig{Name: string(kind), Kind: kind}, ChanSink(ch), telemetry.DefaultSLogger(), nil)
		require.NoError(t, err)
		assert.NotNil(t, c)
	}
}

func TestDropOldestSinkDropsOnFull(t *testing.T) {
	ch := make(chan *sample.Sample, 2)
	var dropped telemetry.Counter
	sink := NewDropOldestSink(ch, &dropped)

	ctx := context.Background()
	sink.Push(ctx, &sample.Sample{Tag: "a"})
	sink.Push(ctx, &sample.Sample{Tag: "b"})
	sink.Push(ctx, &sample.Sample{Tag: "c"})

	assert.Equal(t, int64(1), dropped.Value())
	assert.Len(t, ch, 2)

	first := <-ch
	assert.Equal(t, "b", first.Tag)
}

func TestChanSinkBlocksUntilSpaceOrCancel(t *testing.T) {
	ch := make(chan *sample.Sample)
	ctx, cancel := context.WithCancel(context.Background())
	sink := ChanSink(ch)

	done := make(chan struct{})
	go func() {
		sink.Push(ctx, &sample.Sample{Tag: "a"})
		close(done)
	}()

	cancel()
	<-done
}
