// SPDX-License-Identifier: GPL-3.0-or-later

package buffer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/joeycumines/go-longpoll"
	"github.com/joeycumines/go-microbatch"
	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// StoreWriter is the local store's write side, as the buffer writer needs
// it: one transactional append of a batch of rows for one table.
type StoreWriter interface {
	WriteBatch(ctx context.Context, table sample.Table, rows []sample.Row) error
}

// tables is the closed set of destination tables the buffer writer owns
// one FIFO and one batcher for (spec.md §3, §4.3).
var tables = []sample.Table{sample.TablePLC, sample.TableAttitude, sample.TableMonitoring}

// Writer is the buffer writer (spec.md §4.3): it drains the quality
// pipeline's output channel into per-table FIFOs, batches each table by
// size or interval via [github.com/joeycumines/go-microbatch], and writes
// batches to the store, poisoning on repeated failure.
type Writer struct {
	cfg    config.BufferConfig
	store  StoreWriter
	poison *PoisonWriter
	logger telemetry.SLogger
	gate   *telemetry.RateGate

	fifos    map[sample.Table]*FIFO
	batchers map[sample.Table]*microbatch.Batcher[sample.Row]

	drainWG sync.WaitGroup
}

// New returns a [*Writer]. cfg.MaxSize bounds each table's FIFO;
// cfg.FlushThreshold/cfg.FlushInterval drive each table's batcher.
func New(cfg config.BufferConfig, store StoreWriter, poison *PoisonWriter, logger telemetry.SLogger, gate *telemetry.RateGate) *Writer {
	w := &Writer{
		cfg:      cfg,
		store:    store,
		poison:   poison,
		logger:   logger,
		gate:     gate,
		fifos:    make(map[sample.Table]*FIFO, len(tables)),
		batchers: make(map[sample.Table]*microbatch.Batcher[sample.Row], len(tables)),
	}

	for _, table := range tables {
		w.fifos[table] = NewFIFO(cfg.MaxSize, cfg.OverflowPolicy)

		tbl := table
		w.batchers[table] = microbatch.NewBatcher(&microbatch.BatcherConfig{
			MaxSize:       cfg.FlushThreshold,
			FlushInterval: cfg.FlushInterval,
		}, func(ctx context.Context, rows []sample.Row) error {
			return w.flush(ctx, tbl, rows)
		})
	}

	return w
}

// flush writes rows to the store, retrying once after 100ms, then poisons
// the batch on a second failure (spec.md §4.3). It never returns an error
// to the batcher: callers aren't waiting on JobResult.Wait, and a poisoned
// batch is itself the terminal handling of the failure.
func (w *Writer) flush(ctx context.Context, table sample.Table, rows []sample.Row) error {
	if len(rows) == 0 {
		return nil
	}

	if err := w.store.WriteBatch(ctx, table, rows); err == nil {
		return nil
	} else if w.gate.Allow("storage-transient:" + string(table)) {
		w.logger.Warn("bufferFlushRetry", "table", string(table), "rows", len(rows), "err", err.Error())
	}

	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
	}

	if err := w.store.WriteBatch(ctx, table, rows); err == nil {
		return nil
	}

	if err := w.poison.Write(table, rows); err != nil {
		w.logger.Warn("poisonWriteFailed", "table", string(table), "err", err.Error())
	}
	return nil
}

// Start launches one drain goroutine per table, each submitting rows
// popped off that table's FIFO to its batcher, and returns without waiting
// for them. The goroutines exit on ctx cancellation; Shutdown waits for
// them.
func (w *Writer) Start(ctx context.Context) {
	for _, table := range tables {
		fifo := w.fifos[table]
		batcher := w.batchers[table]
		w.drainWG.Add(1)
		go func() {
			defer w.drainWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case row, ok := <-fifo.Chan():
					if !ok {
						return
					}
					if _, err := batcher.Submit(ctx, row); err != nil {
						return
					}
				}
			}
		}()
	}
}

// Intake drains in (the quality pipeline's output channel), routing each
// resolved Sample to its destination table's FIFO, using
// [github.com/joeycumines/go-longpoll]'s Channel helper to receive as many
// values as possible per iteration (spec.md §4.3). Returns nil when in is
// closed and fully drained, or ctx's error otherwise.
func (w *Writer) Intake(ctx context.Context, in <-chan *sample.Sample, tableFor func(tag string) sample.Table) error {
	for {
		err := longpoll.Channel[*sample.Sample](ctx, nil, in, func(s *sample.Sample) error {
			table := tableFor(s.Tag)
			row := sample.RowFromSample(s, table)
			return w.fifos[table].Push(ctx, row)
		})
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Shutdown drains all FIFOs within the configured grace period (default
// 30s): it shuts down each batcher, then writes whatever is still queued in
// each FIFO to the store as one batch per table through flush, which
// poisons a batch only when its write fails twice or the grace period has
// run out (spec.md §4.3, §8 scenario 6).
// The caller must cancel the context passed to Start before calling
// Shutdown, so the drain goroutines have already exited.
func (w *Writer) Shutdown(ctx context.Context) error {
	grace := w.cfg.DrainGrace
	if grace <= 0 {
		grace = config.DefaultBufferConfig().DrainGrace
	}
	gctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	w.drainWG.Wait()

	for _, table := range tables {
		_ = w.batchers[table].Shutdown(gctx)
	}

	for _, table := range tables {
		fifo := w.fifos[table]
		var rows []sample.Row
		for {
			select {
			case row := <-fifo.Chan():
				rows = append(rows, row)
				continue
			default:
			}
			break
		}
		_ = w.flush(gctx, table, rows)
	}

	return nil
}

// Health reports the per-table queue depth and drop counts (§5).
func (w *Writer) Health() map[sample.Table]FIFOHealth {
	out := make(map[sample.Table]FIFOHealth, len(tables))
	for _, table := range tables {
		out[table] = FIFOHealth{Depth: w.fifos[table].Len(), Dropped: w.fifos[table].Dropped()}
	}
	return out
}

// FIFOHealth is one table's queue depth and drop count.
type FIFOHealth struct {
	Depth   int
	Dropped int64
}
