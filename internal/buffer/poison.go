// SPDX-License-Identifier: GPL-3.0-or-later

package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tbmedge/edgecore/internal/sample"
	"github.com/tbmedge/edgecore/internal/telemetry"
)

// PoisonWriter appends a failed batch as one newline-delimited JSON line to
// poison/<table>-<unix nanos>.log (spec.md §4.3), so an operator can replay
// it later without losing the records.
type PoisonWriter struct {
	dir     string
	logger  telemetry.SLogger
	timeNow func() time.Time
	count   telemetry.Counter
}

// NewPoisonWriter returns a [*PoisonWriter] writing under dir. A nil
// timeNow defaults to [time.Now].
func NewPoisonWriter(dir string, logger telemetry.SLogger, timeNow func() time.Time) *PoisonWriter {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &PoisonWriter{dir: dir, logger: logger, timeNow: timeNow}
}

// Write appends rows as one JSON-array line to this table's poison log.
func (p *PoisonWriter) Write(table sample.Table, rows []sample.Row) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("buffer: create poison dir: %w", err)
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%s-%d.log", table, p.timeNow().UnixNano()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("buffer: open poison log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rows); err != nil {
		return fmt.Errorf("buffer: encode poison batch: %w", err)
	}

	p.count.Add(1)
	p.logger.Warn("batchPoisoned", "table", string(table), "rows", len(rows), "path", path)
	return nil
}

// Count returns the running number of poisoned batches.
func (p *PoisonWriter) Count() int64 {
	return p.count.Value()
}
