// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

type fakeSubscriptionSource struct {
	subscribed chan struct{}
	onValue    func(tag string, value float64, serverTS int64)
	closed     chan struct{}
}

func (f *fakeSubscriptionSource) Subscribe(ctx context.Context, tags []config.TagConfig, onValue func(tag string, value float64, serverTS int64)) error {
	f.onValue = onValue
	close(f.subscribed)
	<-ctx.Done()
	return errors.New("subscription lost")
}

func (f *fakeSubscriptionSource) Close() error {
	close(f.closed)
	return nil
}

func TestSubscriptionCollectorDeliversCallbackValues(t *testing.T) {
	ch := make(chan *sample.Sample, 4)
	c, err := New(config.SourceConfig{Name: "plc", Kind: config.SourceSubscription}, ChanSink(ch), telemetry.DefaultSLogger(), nil)
	require.NoError(t, err)

	sc := c.(*SubscriptionCollector)
	src := &fakeSubscriptionSource{subscribed: make(chan struct{}), closed: make(chan struct{})}
	sc.WithSource(src)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sc.Start(ctx))

	<-src.subscribed
	src.onValue("thrust_total", 10500, 1000)

	select {
	case s := <-sc.sink.ch:
		assert.Equal(t, "thrust_total", s.Tag)
		assert.Equal(t, float64(10500), s.Value)
	case <-time.After(time.Second):
		t.Fatal("expected a sample pushed to sink")
	}

	assert.True(t, sc.Health().Connected)

	cancel()
	require.NoError(t, sc.Stop(context.Background()))
}
