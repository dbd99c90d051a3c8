// SPDX-License-Identifier: GPL-3.0-or-later

// Package buffer implements the buffer writer (spec.md §4.3): one bounded
// FIFO per destination table, drained into size/interval-triggered
// batches that the local store persists transactionally, with
// retry-once-then-poison semantics on write failure.
package buffer

import (
	"context"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// FIFO is a bounded, channel-backed queue for one destination table,
// enforcing the configured overflow policy (spec.md §4.3: drop_oldest,
// drop_newest, block) the way the teacher's collectors build their
// "suspension point" channel plumbing (§5) — a plain Go channel plus
// select, not a hand-rolled ring buffer.
type FIFO struct {
	ch      chan sample.Row
	policy  config.OverflowPolicy
	dropped telemetry.Counter
}

// NewFIFO returns a [*FIFO] with the given capacity and overflow policy.
func NewFIFO(maxSize int, policy config.OverflowPolicy) *FIFO {
	if maxSize <= 0 {
		maxSize = config.DefaultBufferConfig().MaxSize
	}
	return &FIFO{ch: make(chan sample.Row, maxSize), policy: policy}
}

// Push appends row, applying the overflow policy if the FIFO is full.
// Under [config.Block] it blocks until space frees up or ctx is done.
func (f *FIFO) Push(ctx context.Context, row sample.Row) error {
	switch f.policy {
	case config.Block:
		select {
		case f.ch <- row:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case config.DropNewest:
		select {
		case f.ch <- row:
			return nil
		default:
			f.dropped.Add(1)
			return nil
		}

	default: // DropOldest
		for {
			select {
			case f.ch <- row:
				return nil
			default:
				select {
				case <-f.ch:
					f.dropped.Add(1)
				default:
				}
			}
		}
	}
}

// Chan returns the receive side of the FIFO, for the table's drain loop.
func (f *FIFO) Chan() <-chan sample.Row {
	return f.ch
}

// Dropped returns the running count of rows the overflow policy discarded.
func (f *FIFO) Dropped() int64 {
	return f.dropped.Value()
}

// Len reports the number of rows currently queued.
func (f *FIFO) Len() int {
	return len(f.ch)
}
