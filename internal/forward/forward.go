// Package forward implements the quadratic reference executor
// described in spec §"Reference forward executor": repeatedly scan
// every rule, evaluate its conditions against the current Facts,
// collect the matching set, fire the highest-salience match, and
// restart from scratch until a fixpoint. It exists to cross-check the
// RETE network's semantics on rule sets without joins, and to back a
// debug-traced execution mode that favors simplicity over speed.
//
// The teacher's nearest analogue is core/location.go's ProcessBatch,
// which also rescans and reprocesses on every batch rather than
// maintaining incremental indexes — this package keeps that same
// "just rescan" posture deliberately, since it is the point of having
// a reference implementation at all.
package forward

import (
	"fmt"
	"sort"

	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/rete"
)

// Executor applies one rule's actions against Facts, mirroring
// engine.actionExecutor so both the RETE and reference paths share
// identical action semantics.
type Executor func(rule grl.Rule, f *facts.Facts) error

// FiredRecord records one rule firing in the order it happened.
type FiredRecord struct {
	RuleName string
}

// Run evaluates rules against f to a fixpoint, firing the
// highest-salience match on each scan and restarting, until no rule
// matches or maxIterations is reached. no-loop rules are tracked by
// rule name: each no-loop rule fires at most once per Run, a coarser
// granularity than RETE's per-handle-tuple tracking. A rule without
// no-loop is fired again on every scan in which its conditions hold.
//
// Reaching maxIterations while a match is still pending is a
// non-terminating rule set, not a success (§4.5 "Termination"): Run
// reports that as a *errors.LimitError rather than silently returning
// a truncated result.
func Run(rules []grl.Rule, f *facts.Facts, exec Executor, maxIterations int) ([]FiredRecord, error) {
	fired := make([]FiredRecord, 0)
	firedOnce := map[string]bool{}

	iter := 0
	for ; iter < maxIterations; iter++ {
		best, bestIdx, found := selectBestMatch(rules, f, firedOnce)
		if !found {
			return fired, nil
		}
		if err := exec(rules[bestIdx], f); err != nil {
			return fired, fmt.Errorf("forward: firing %q: %w", best.Name, err)
		}
		if best.Control.NoLoop {
			firedOnce[best.Name] = true
		}
		fired = append(fired, FiredRecord{RuleName: best.Name})
	}
	if _, _, found := selectBestMatch(rules, f, firedOnce); found {
		return fired, errors.NewLimitError("forward: iteration cap (%d) exceeded with a match still pending", maxIterations)
	}
	return fired, nil
}

// selectBestMatch scans every rule, evaluates its conditions, and
// returns the one with the highest salience among matches (ties
// broken by declaration order, which is this executor's analogue of
// RETE's insertion-ordinal FIFO).
func selectBestMatch(rules []grl.Rule, f *facts.Facts, firedOnce map[string]bool) (grl.Rule, int, bool) {
	type candidate struct {
		rule grl.Rule
		idx  int
	}
	var candidates []candidate
	for i, r := range rules {
		if r.Control.NoLoop && firedOnce[r.Name] {
			continue
		}
		ok, err := matches(r, f)
		if err != nil || !ok {
			continue
		}
		candidates = append(candidates, candidate{rule: r, idx: i})
	}
	if len(candidates) == 0 {
		return grl.Rule{}, 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rule.Salience > candidates[j].rule.Salience
	})
	return candidates[0].rule, candidates[0].idx, true
}

func matches(r grl.Rule, f *facts.Facts) (bool, error) {
	v, err := rete.Eval(r.Conditions, rete.Lookup(f.Get))
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}
