// SPDX-License-Identifier: GPL-3.0-or-later

// Command edged is the edge pipeline's entry point: it builds a
// [config.Snapshot] from the environment, wires a collector per configured
// source into one quality router per destination table, starts the buffer
// writer, the local store, and the ring aligner, and runs them all until told to stop.
//
// The core never parses operator config files (internal/config's own
// doc comment says as much); edged's bootstrap reads only the
// environment variables spec.md §6 names as core-visible (DB_PATH,
// LOG_LEVEL, and any *_TOKEN credential names), matching a deployment
// with exactly one source per table declared ahead of time. A real
// fleet would sit a text-config loader in front of this, publishing
// through the same [config.Publisher].
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbmedge/edgecore/internal/api"
	"github.com/tbmedge/edgecore/internal/buffer"
	"github.com/tbmedge/edgecore/internal/collector"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/quality"
	"github.com/tbmedge/edgecore/internal/ringaligner"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/store"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("edged exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
	gate := telemetry.NewRateGate(10 * time.Second)

	snapshot := bootstrapSnapshot()
	publisher := config.NewPublisher(snapshot)

	st, err := store.Open(ctx, publisher.Load().Store.Path)
	if err != nil {
		return fmt.Errorf("edged: open store: %w", err)
	}
	defer st.Close()

	poison := buffer.NewPoisonWriter("poison", logger, nil)
	writer := buffer.New(publisher.Load().Buffer, st, poison, logger, gate)

	pipelineOut := make(chan *sample.Sample, 1024)
	routers := map[string]*quality.Router{
		string(sample.TablePLC):        quality.NewRouter(publisher.Load, logger, gate, emitTo(pipelineOut)),
		string(sample.TableAttitude):   quality.NewRouter(publisher.Load, logger, gate, emitTo(pipelineOut)),
		string(sample.TableMonitoring): quality.NewRouter(publisher.Load, logger, gate, emitTo(pipelineOut)),
	}

	aligner := ringaligner.New(st, publisher.Load, logger, gate)

	app := api.New(st,
		routers[string(sample.TablePLC)],
		routers[string(sample.TableAttitude)],
		routers[string(sample.TableMonitoring)],
	)
	_ = app // exposed for an operator-facing RPC/HTTP front end outside this binary's scope

	g, gctx := errgroup.WithContext(ctx)

	collectors := make([]collector.Collector, 0, len(publisher.Load().Sources))
	for _, src := range publisher.Load().Sources {
		src := src
		table := tableFor(src)
		sink := make(chan *sample.Sample, 256)

		c, err := collector.New(src, collector.ChanSink(sink), logger, nil)
		if err != nil {
			return fmt.Errorf("edged: build collector %q: %w", src.Name, err)
		}
		collectors = append(collectors, c)

		if err := c.Start(gctx); err != nil {
			return fmt.Errorf("edged: start collector %q: %w", src.Name, err)
		}

		router := routers[string(table)]
		g.Go(func() error {
			return routeCollectorOutput(gctx, sink, router, pipelineOut, logger, gate, src.Name)
		})
	}

	writer.Start(gctx)
	g.Go(func() error {
		return writer.Intake(gctx, pipelineOut, tableForTag)
	})

	g.Go(func() error {
		aligner.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, c := range collectors {
			if err := c.Stop(stopCtx); err != nil && gate.Allow("collector-stop") {
				logger.Warn("collectorStopFailed", "err", err.Error())
			}
		}
		if err := writer.Shutdown(stopCtx); err != nil && gate.Allow("writer-shutdown") {
			logger.Warn("writerShutdownFailed", "err", err.Error())
		}
		return nil
	})

	<-gctx.Done()
	if err := g.Wait(); err != nil {
		return fmt.Errorf("edged: %w", err)
	}
	return nil
}

// routeCollectorOutput forwards a collector's raw output into its
// destination table's router, then onto pipelineOut for the buffer
// writer to pick up. It exits when sink closes or ctx is done.
func routeCollectorOutput(ctx context.Context, sink <-chan *sample.Sample, router *quality.Router, pipelineOut chan<- *sample.Sample, logger telemetry.SLogger, gate *telemetry.RateGate, sourceName string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-sink:
			if !ok {
				return nil
			}
			resolved, accepted, err := router.Process(ctx, s)
			if err != nil {
				if gate.Allow("quality-process:" + sourceName) {
					logger.Warn("qualityProcessError", "source", sourceName, "tag", s.Tag, "err", err.Error())
				}
				continue
			}
			if !accepted {
				continue
			}
			select {
			case pipelineOut <- resolved:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// emitTo returns the Pipeline "extra resolved sample" callback that
// forwards the interpolation stage's second output onto the same channel
// as the primary result, so both paths of a resolved gap land in the
// buffer writer (internal/quality's Process doc comment).
func emitTo(out chan<- *sample.Sample) func(ctx context.Context, s *sample.Sample) error {
	return func(ctx context.Context, s *sample.Sample) error {
		select {
		case out <- s:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// attitudeTags and monitoringTags are the fixed tag vocabularies
// ringaligner.Tag* constants name; every other tag a source produces is
// a PLC tag. spec.md §3 describes the three sample tables as "differ[ing]
// only in tag vocabulary", so a source's table is determined by which
// vocabulary its tags belong to, not by any separate config field.
var attitudeTags = map[string]bool{
	ringaligner.TagPitch:      true,
	ringaligner.TagRoll:       true,
	ringaligner.TagYaw:        true,
	ringaligner.TagHDeviation: true,
	ringaligner.TagVDeviation: true,
}

var monitoringTags = map[string]bool{
	ringaligner.TagSettlementValue:   true,
	ringaligner.TagDisplacementValue: true,
}

// tableForTag classifies one tag name into its destination table.
func tableForTag(tag string) sample.Table {
	if attitudeTags[tag] {
		return sample.TableAttitude
	}
	if monitoringTags[tag] {
		return sample.TableMonitoring
	}
	return sample.TablePLC
}

// tableFor classifies a whole source by the first declared tag that
// belongs to the attitude or monitoring vocabulary, falling back to PLC
// when no declared tag does (including a source with no tags).
func tableFor(src config.SourceConfig) sample.Table {
	for _, tag := range src.Tags {
		if t := tableForTag(tag.Name); t != sample.TablePLC {
			return t
		}
	}
	return sample.TablePLC
}

// logLevel reads LOG_LEVEL (debug, info, warn, error; case-insensitive),
// defaulting to info (spec.md §6 "Environment variables (core-visible):
// DB_PATH, LOG_LEVEL").
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// bootstrapSnapshot builds a minimal [*config.Snapshot] from the
// environment: DB_PATH for the store path, and the defaults for buffer
// and aligner tuning. A real deployment's out-of-scope text-config layer
// would replace this with a parsed, richer Snapshot published through
// the same [config.Publisher].
func bootstrapSnapshot() *config.Snapshot {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "edgecore.db"
	}

	return &config.Snapshot{
		Buffer:  config.DefaultBufferConfig(),
		Aligner: config.DefaultAlignerConfig(),
		Store:   config.StoreConfig{Path: dbPath},
	}
}
