// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// PollingCollector reads a configured block of registers over TCP at a
// fixed interval and decodes each register per its declared type (spec.md
// §4.1 "Polling (binary register protocol)").
type PollingCollector struct {
	cfg     config.SourceConfig
	sink    Sink
	logger  telemetry.SLogger
	timeNow func() time.Time

	dial    *connectFunc
	watch   *cancelWatchFunc
	observe *observeConnFunc

	errRate *telemetry.ErrorRate
	gate    *telemetry.RateGate

	cancel context.CancelFunc
	done   chan struct{}

	connected atomic.Bool
	lastSampleTS atomic.Int64
}

func newPollingCollector(cfg config.SourceConfig, sink Sink, logger telemetry.SLogger, timeNow func() time.Time) *PollingCollector {
	classifier := telemetry.DefaultErrClassifier
	return &PollingCollector{
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		timeNow: timeNow,
		dial:    newConnectFunc(&net.Dialer{}, classifier, "tcp", logger, timeNow),
		watch:   newCancelWatchFunc(),
		observe: newObserveConnFunc(classifier, logger, timeNow),
		errRate: telemetry.NewErrorRate(60 * time.Second),
		gate:    telemetry.NewRateGate(10 * time.Second),
	}
}

var _ Collector = &PollingCollector{}

// Start begins the polling loop on a background goroutine. Returns a
// [*telemetry.ConfigurationError] immediately if the endpoint cannot be
// parsed (source-configuration failures fail fast, spec.md §4.1).
func (c *PollingCollector) Start(ctx context.Context) error {
	addr, err := netip.ParseAddrPort(c.cfg.Endpoint)
	if err != nil {
		return &telemetry.ConfigurationError{Reason: fmt.Sprintf("polling source %q: invalid endpoint %q", c.cfg.Name, c.cfg.Endpoint), Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, addr)
	return nil
}

// Stop cancels the polling loop and waits for it to exit, bounded by ctx.
func (c *PollingCollector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Health implements [Collector].
func (c *PollingCollector) Health() Health {
	return Health{
		Connected:        c.connected.Load(),
		LastSampleTS:     c.lastSampleTS.Load(),
		ErrorRateLast60s: c.errRate.Count(c.timeNow()),
	}
}

func (c *PollingCollector) run(ctx context.Context, addr netip.AddrPort) {
	defer close(c.done)

	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	back := newBackoff(c.cfg.Backoff)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var conn net.Conn
	closeConn := func() {
		if conn != nil {
			conn.Close()
			conn = nil
			c.connected.Store(false)
		}
	}
	defer closeConn()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if conn == nil {
			span := telemetry.NewSpanID()
			c.logger.Info("pollConnectStart", "spanId", span, "source", c.cfg.Name)
			dialed, err := c.dial.Call(ctx, addr)
			if err != nil {
				c.recordError(err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(back.Next()):
				}
				continue
			}
			watched, _ := c.watch.Call(ctx, dialed)
			conn, _ = c.observe.Call(ctx, watched)
			c.connected.Store(true)
			back.Reset()
		}

		if err := c.pollOnce(ctx, conn); err != nil {
			c.recordError(err)
			closeConn()
		}
	}
}

func (c *PollingCollector) pollOnce(ctx context.Context, conn net.Conn) error {
	deadline := c.timeNow().Add(2 * time.Second)
	conn.SetDeadline(deadline)

	block := make([]byte, registerBlockSize(c.cfg.Tags))
	if _, err := readFull(conn, block); err != nil {
		return err
	}

	now := c.timeNow().UnixMilli()
	for _, tag := range c.cfg.Tags {
		value, err := decodeRegister(block, tag)
		if err != nil {
			// logged and skipped: nothing is enqueued for this tag and no
			// missing-sample count is kept
			c.logger.Warn("pollDecodeFailed", "tag", tag.Name, "err", err.Error())
			continue
		}
		c.sink.Push(ctx, &sample.Sample{
			Source:      c.cfg.Name,
			Tag:         tag.Name,
			TimestampMS: now,
			Value:       value,
			Meta:        map[string]string{"register": fmt.Sprintf("%d", tag.Register)},
		})
	}
	c.lastSampleTS.Store(now)
	return nil
}

func (c *PollingCollector) recordError(err error) {
	c.errRate.Record(c.timeNow())
	kind := telemetry.ClassifyTransport(err)
	if c.gate.Allow(string(kind) + ":" + c.cfg.Name) {
		c.logger.Warn("pollFailed", "source", c.cfg.Name, "kind", string(kind), "err", err.Error())
	}
}

func registerBlockSize(tags []config.TagConfig) int {
	maxEnd := 0
	for _, t := range tags {
		end := int(t.Register)*2 + 2
		switch t.RegisterType {
		case config.RegisterFloat32BE, config.RegisterFloat32LE:
			end += 2
		}
		if end > maxEnd {
			maxEnd = end
		}
	}
	return maxEnd
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
