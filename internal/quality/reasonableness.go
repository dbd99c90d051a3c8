// SPDX-License-Identifier: GPL-3.0-or-later

package quality

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tbmedge/edgecore/internal/config"
	"github.com/tbmedge/edgecore/internal/pipe"
	"github.com/tbmedge/edgecore/internal/sample"
)

// reasonablenessFunc is stage 3: a per-tag first-derivative bound plus a
// small closed-form cross-tag rule evaluator (spec.md §4.2 stage 3, §9's
// "not an open-ended string-eval DSL" design note). The value is preserved
// either way; only the flag changes.
type reasonablenessFunc struct {
	snapshot func() *config.Snapshot

	mu   sync.Mutex
	last map[string]*sample.Sample // last accepted (non-gap) sample per tag

	// latest is the most recent good value seen per tag, consulted by
	// cross-tag rules so a rule on tag B can reference tag A's latest
	// reading without re-threading state through the pipeline.
	latest map[string]float64
}

var _ pipe.Func[*sample.Sample, *sample.Sample] = &reasonablenessFunc{}

func newReasonablenessFunc(snapshot func() *config.Snapshot) *reasonablenessFunc {
	return &reasonablenessFunc{
		snapshot: snapshot,
		last:     make(map[string]*sample.Sample),
		latest:   make(map[string]float64),
	}
}

func (f *reasonablenessFunc) Call(ctx context.Context, s *sample.Sample) (*sample.Sample, error) {
	if s.Flag.Has(sample.Missing) {
		return s, nil
	}

	cfg := f.snapshot()
	rule, ok := cfg.Reasonableness[s.Tag]

	f.mu.Lock()
	defer f.mu.Unlock()

	if ok && rule.MaxRate > 0 {
		if prev, exists := f.last[s.Tag]; exists {
			dt := time.Duration(s.TimestampMS-prev.TimestampMS) * time.Millisecond
			if dt > 0 {
				rate := math.Abs(s.Value-prev.Value) / dt.Seconds()
				if rate > rule.MaxRate {
					s.Flag |= sample.PhysicallyImplausible
				}
			}
		}
	}

	for _, cr := range rule.CrossRules {
		f.evalCrossRule(s, cr)
	}
	// A tag can also be the antecedent of a rule keyed under a different
	// tag's config; evaluate those too.
	for tag, rc := range cfg.Reasonableness {
		if tag == s.Tag {
			continue
		}
		for _, cr := range rc.CrossRules {
			if cr.AntecedentTag == s.Tag || cr.ConsequentTag == s.Tag {
				f.evalCrossRule(s, cr)
			}
		}
	}

	f.latest[s.Tag] = s.Value
	f.last[s.Tag] = s
	return s, nil
}

// evalCrossRule checks a closed-form "antecedentTag > antecedentGT implies
// consequentTag > consequentGT" constraint. Both operands must have been
// observed at least once; an unobserved operand makes the rule
// unevaluable and it is skipped rather than flagged.
func (f *reasonablenessFunc) evalCrossRule(s *sample.Sample, cr config.CrossTagRule) {
	antecedent, haveA := f.operand(s, cr.AntecedentTag)
	consequent, haveC := f.operand(s, cr.ConsequentTag)
	if !haveA || !haveC {
		return
	}
	if antecedent > cr.AntecedentGT && !(consequent > cr.ConsequentGT) {
		s.Flag |= sample.PhysicallyImplausible
	}
}

func (f *reasonablenessFunc) operand(s *sample.Sample, tag string) (float64, bool) {
	if tag == s.Tag {
		return s.Value, true
	}
	v, ok := f.latest[tag]
	return v, ok
}
