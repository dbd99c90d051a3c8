// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// SubscriptionSource is the capability an out-of-scope protocol adapter
// implements: subscribe to a tag list and invoke the given callback on
// every value change. The callback must be non-blocking and must not hold
// locks across the boundary (spec.md §9's "callback-driven subscription"
// design note).
type SubscriptionSource interface {
	Subscribe(ctx context.Context, tags []config.TagConfig, onValue func(tag string, value float64, serverTS int64)) error
	Close() error
}

// SubscriptionCollector adapts a push-based [SubscriptionSource] to
// [Collector], translating each callback into a [sample.Sample] and
// enqueuing it with the drop-oldest policy so a stalled buffer writer
// never stalls the source library (spec.md §4.1 "Subscription").
type SubscriptionCollector struct {
	cfg     config.SourceConfig
	source  SubscriptionSource
	sink    *DropOldestSink
	logger  telemetry.SLogger
	timeNow func() time.Time

	errRate *telemetry.ErrorRate
	gate    *telemetry.RateGate

	connected    atomic.Bool
	lastSampleTS atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// newSubscriptionCollector builds a [*SubscriptionCollector]. sink must be
// the collector's own bounded channel wrapped in a [*DropOldestSink]; the
// plain [Sink] parameter on [New] is widened here because subscription
// sources specifically need drop-oldest-with-counter semantics, not
// blocking sends.
func newSubscriptionCollector(cfg config.SourceConfig, sink Sink, logger telemetry.SLogger, timeNow func() time.Time) *SubscriptionCollector {
	var dropSink *DropOldestSink
	if ds, ok := sink.(*DropOldestSink); ok {
		dropSink = ds
	} else {
		ch := make(chan *sample.Sample, 1024)
		dropSink = NewDropOldestSink(ch, &telemetry.Counter{})
	}
	return &SubscriptionCollector{
		cfg:     cfg,
		sink:    dropSink,
		logger:  logger,
		timeNow: timeNow,
		errRate: telemetry.NewErrorRate(60 * time.Second),
		gate:    telemetry.NewRateGate(10 * time.Second),
	}
}

var _ Collector = &SubscriptionCollector{}

// WithSource attaches the external subscription source implementation;
// must be called before Start.
func (c *SubscriptionCollector) WithSource(source SubscriptionSource) *SubscriptionCollector {
	c.source = source
	return c
}

// Start subscribes to the configured tag list and reconnects with
// exponential backoff on connection loss.
func (c *SubscriptionCollector) Start(ctx context.Context) error {
	if c.source == nil {
		return &telemetry.ConfigurationError{Reason: "subscription source " + c.cfg.Name + ": no SubscriptionSource attached"}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx)
	return nil
}

func (c *SubscriptionCollector) run(ctx context.Context) {
	defer close(c.done)

	back := newBackoff(c.cfg.Backoff)
	for {
		err := c.source.Subscribe(ctx, c.cfg.Tags, c.onValue)
		c.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		c.recordError(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(back.Next()):
		}
	}
}

// onValue is the non-blocking callback passed to the source library. It
// must never acquire a lock that the library's dispatch goroutine could
// also need.
func (c *SubscriptionCollector) onValue(tag string, value float64, serverTS int64) {
	c.connected.Store(true)
	now := serverTS
	if now == 0 {
		now = c.timeNow().UnixMilli()
	}
	c.lastSampleTS.Store(now)
	c.sink.Push(context.Background(), &sample.Sample{
		Source:      c.cfg.Name,
		Tag:         tag,
		TimestampMS: now,
		Value:       value,
	})
}

// Stop closes the subscription source, which unblocks Subscribe, then
// waits for the run loop to exit.
func (c *SubscriptionCollector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.source != nil {
		c.source.Close()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Health implements [Collector].
func (c *SubscriptionCollector) Health() Health {
	return Health{
		Connected:        c.connected.Load(),
		LastSampleTS:     c.lastSampleTS.Load(),
		ErrorRateLast60s: c.errRate.Count(c.timeNow()),
	}
}

func (c *SubscriptionCollector) recordError(err error) {
	if err == nil {
		return
	}
	c.errRate.Record(c.timeNow())
	kind := telemetry.ClassifyTransport(err)
	if c.gate.Allow(string(kind) + ":" + c.cfg.Name) {
		c.logger.Warn("subscriptionFailed", "source", c.cfg.Name, "kind", string(kind), "err", err.Error())
	}
}
