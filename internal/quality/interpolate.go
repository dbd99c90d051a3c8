// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"
	"time"

	"github.com/cloudwego/gopkg/container/ring"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
)

// defaultHistorySize is N from spec.md §4.2 stage 2: the rolling per-tag
// history of the last N good samples.
const defaultHistorySize = 8

// defaultGapMaxSeconds is the fallback when a tag carries no explicit
// gap_max_seconds (spec.md §4.2 stage 2 default).
const defaultGapMaxSeconds = 10 * time.Second

// interpolateFunc is stage 2: linear interpolation across a single held gap
// (spec.md §4.2 stage 2). A gap is a sample the threshold stage flagged
// [sample.OutOfRange]; it is held until the next good sample for the same
// tag arrives. If the gap's age relative to the last good sample is within
// gap_max_seconds (boundary inclusive), the held record is resolved to an
// interpolated value; otherwise it is dropped (flagged [sample.Missing]).
//
// One interpolateFunc, like one [Pipeline], belongs to exactly one tag of
// one [Router] (§9): its rolling state is never a shared, mutex-guarded
// map, and since [Router.Process] holds the Router's mutex around the
// whole call, Call is never invoked concurrently.
type interpolateFunc struct {
	gapMaxSeconds func(tag string) time.Duration

	history *ring.Ring[sample.Sample]
	cursor  int
	filled  int

	lastGood   *sample.Sample
	pendingGap *sample.Sample

	// pendingExtra holds the good sample that just resolved pendingGap.
	// Compose5 threads exactly one value per stage per Call, so this
	// sample cannot also be Call's return value; [Pipeline.Process]
	// drains it after the primary chain finishes, running it through the
	// remaining stages in its correct chronological position.
	pendingExtra *sample.Sample
}

var _ pipe.Func[*sample.Sample, *sample.Sample] = &interpolateFunc{}

func newInterpolateFunc(gapMaxSeconds func(tag string) time.Duration) *interpolateFunc {
	return &interpolateFunc{
		gapMaxSeconds: gapMaxSeconds,
		history:       ring.NewFromSlice(make([]sample.Sample, defaultHistorySize)),
	}
}

func (f *interpolateFunc) record(s sample.Sample) {
	item, _ := f.history.Get(f.cursor)
	*item.Pointer() = s
	f.cursor = (f.cursor + 1) % f.history.Len()
	if f.filled < f.history.Len() {
		f.filled++
	}
}

func (f *interpolateFunc) gapMax(tag string) time.Duration {
	if f.gapMaxSeconds == nil {
		return defaultGapMaxSeconds
	}
	if d := f.gapMaxSeconds(tag); d > 0 {
		return d
	}
	return defaultGapMaxSeconds
}

// TakePendingExtra returns and clears the good sample deferred by the most
// recent Call, or nil if none is pending.
func (f *interpolateFunc) TakePendingExtra() *sample.Sample {
	extra := f.pendingExtra
	f.pendingExtra = nil
	return extra
}

func (f *interpolateFunc) Call(ctx context.Context, s *sample.Sample) (*sample.Sample, error) {
	if s.Flag.Has(sample.Missing) {
		return s, nil
	}

	if s.Flag.Has(sample.OutOfRange) {
		// Current sample is a gap: hold it, do not pass the numerical
		// value downstream yet. A second consecutive gap does not
		// extend or replace the held window: only the first pending gap
		// is kept, and the second is returned flagged Missing at once.
		if f.pendingGap == nil {
			f.pendingGap = s
		}
		held := *s
		held.Flag |= sample.Missing
		return &held, nil
	}

	// Current sample is good.
	if f.pendingGap == nil || f.lastGood == nil {
		f.lastGood = s
		f.record(*s)
		return s, nil
	}

	gap := f.pendingGap
	age := time.Duration(gap.TimestampMS-f.lastGood.TimestampMS) * time.Millisecond
	gapLimit := f.gapMax(s.Tag)
	f.pendingGap = nil

	if age > gapLimit {
		// Gap exceeded the window before a forward sample arrived: drop
		// it, keep going with the new good sample.
		f.lastGood = s
		f.record(*s)
		return s, nil
	}

	span := s.TimestampMS - f.lastGood.TimestampMS
	var frac float64
	if span > 0 {
		frac = float64(gap.TimestampMS-f.lastGood.TimestampMS) / float64(span)
	}
	interpolated := *gap
	interpolated.Value = f.lastGood.Value + frac*(s.Value-f.lastGood.Value)
	interpolated.Flag = sample.Interpolated

	f.lastGood = s
	f.record(*s)
	f.pendingExtra = s

	return &interpolated, nil
}
