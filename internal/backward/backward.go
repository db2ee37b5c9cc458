// Package backward implements the goal-directed proof search
// described in spec §4.7: given Facts and a goal expression, try the
// goal directly, else find rules whose actions could establish it,
// recurse on their conditions as sub-goals, and memoize attempted
// goals to prevent cycles.
//
// The teacher has no backward resolver at all; core/query.go's Find
// only ever matches forward against stored facts. This package is new
// code grounded directly in spec §4.7, but its Resolver struct and
// Config follow the teacher's convention of a small options struct
// plus a stateful instance holding caches (core/storage.go's
// LocationManager pairs a config with a *lru.Cache the same way).
package backward

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/rete"
)

// Strategy selects the search order. DepthFirst is the only strategy
// named in §4.7; the type exists so a future strategy has somewhere
// to go without an API break.
type Strategy string

const DepthFirst Strategy = "DepthFirst"

// Config holds the resolver's limits, per §4.7.
type Config struct {
	MaxDepth          int
	MaxSolutions      int
	EnableMemoization bool
	Strategy          Strategy
}

// DefaultConfig matches §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: 50, MaxSolutions: 1, EnableMemoization: true, Strategy: DepthFirst}
}

// Stats accumulates the search statistics §4.7 asks Query to return.
type Stats struct {
	GoalsExplored  int
	RulesEvaluated int
	DurationNanos  int64
}

// ProofStep is one node of a proof trace: the goal proved, the rule
// that established it (empty if proved directly against Facts), and
// the sub-goals that rule's conditions decomposed into.
type ProofStep struct {
	Goal     string
	Rule     string
	SubGoals []ProofStep
}

// Result is what Query returns.
type Result struct {
	Provable bool
	Proof    *ProofStep
	Stats    Stats
}

// Resolver proves goals against a fixed rule set and Facts snapshot.
type Resolver struct {
	rules  []grl.Rule
	facts  *facts.Facts
	config Config
	cache  *lru.Cache
}

// NewResolver builds a Resolver. cacheSize bounds the memoization LRU
// (ignored if cfg.EnableMemoization is false).
func NewResolver(rules []grl.Rule, f *facts.Facts, cfg Config, cacheSize int) (*Resolver, error) {
	r := &Resolver{rules: rules, facts: f, config: cfg}
	if cfg.EnableMemoization {
		if cacheSize <= 0 {
			cacheSize = 1000
		}
		c, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("backward: %w", err)
		}
		r.cache = c
	}
	return r, nil
}

// Query proves goal with full proof-trace capture and statistics.
func (r *Resolver) Query(goal grl.Expr) Result {
	start := time.Now()
	stats := &Stats{}
	visiting := map[string]bool{}
	ok, proof := r.prove(goal, 0, stats, visiting, true)
	stats.DurationNanos = time.Since(start).Nanoseconds()
	return Result{Provable: ok, Proof: proof, Stats: *stats}
}

// CanProve is the lightweight entry point named in SUPPLEMENTED
// FEATURES item 2: it shares Query's search but skips building a
// proof trace, for hot-path callers that only need the boolean.
func (r *Resolver) CanProve(goal grl.Expr) bool {
	stats := &Stats{}
	visiting := map[string]bool{}
	ok, _ := r.prove(goal, 0, stats, visiting, false)
	return ok
}

func (r *Resolver) prove(goal grl.Expr, depth int, stats *Stats, visiting map[string]bool, trace bool) (bool, *ProofStep) {
	if depth > r.config.MaxDepth {
		return false, nil
	}

	key := exprKey(goal)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.(bool), nil
		}
	}
	if visiting[key] {
		// Cycle: treat as unprovable along this path rather than
		// looping forever, per §4.7's "memoize to prevent cycles".
		return false, nil
	}
	visiting[key] = true
	defer delete(visiting, key)

	stats.GoalsExplored++

	switch goal.Kind {
	case grl.ExprAnd:
		var subs []ProofStep
		for _, operand := range goal.Operands {
			ok, sub := r.prove(operand, depth+1, stats, visiting, trace)
			if !ok {
				r.memoize(key, false)
				return false, nil
			}
			if trace && sub != nil {
				subs = append(subs, *sub)
			}
		}
		r.memoize(key, true)
		return true, traceStep(trace, key, "", subs)

	case grl.ExprOr:
		for _, operand := range goal.Operands {
			ok, sub := r.prove(operand, depth+1, stats, visiting, trace)
			if ok {
				r.memoize(key, true)
				var subs []ProofStep
				if trace && sub != nil {
					subs = append(subs, *sub)
				}
				return true, traceStep(trace, key, "", subs)
			}
		}
		r.memoize(key, false)
		return false, nil

	case grl.ExprNot:
		// Negation is only checked directly against current Facts;
		// backward search doesn't attempt to disprove via rule
		// absence (a deliberate simplification, see DESIGN.md).
		v, err := rete.Eval(*goal.Operand, r.facts.Get)
		ok := err == nil && !v.Truthy()
		r.memoize(key, ok)
		return ok, traceStep(trace, key, "", nil)

	default:
		return r.proveAtomic(goal, depth, stats, visiting, trace, key)
	}
}

// proveAtomic handles a single comparison goal: direct Facts check,
// then rule search.
func (r *Resolver) proveAtomic(goal grl.Expr, depth int, stats *Stats, visiting map[string]bool, trace bool, key string) (bool, *ProofStep) {
	if v, err := rete.Eval(goal, r.facts.Get); err == nil && v.Truthy() {
		r.memoize(key, true)
		return true, traceStep(trace, key, "", nil)
	}

	goalPath, target, ok := goalShape(goal)
	if !ok {
		r.memoize(key, false)
		return false, nil
	}

	for _, rule := range r.rules {
		stats.RulesEvaluated++
		for _, action := range rule.Actions {
			if action.Kind != grl.ActionAssign || action.TargetPath != goalPath {
				continue
			}
			if !assignmentCanSatisfy(action, target) {
				continue
			}
			if ok, sub := r.prove(rule.Conditions, depth+1, stats, visiting, trace); ok {
				r.memoize(key, true)
				var subs []ProofStep
				if trace && sub != nil {
					subs = append(subs, *sub)
				}
				return true, traceStep(trace, key, rule.Name, subs)
			}
		}
	}
	r.memoize(key, false)
	return false, nil
}

// assignmentCanSatisfy reports whether an action's literal assignment
// would make the goal's comparison true. Non-literal value
// expressions (arithmetic, paths) can't be evaluated without already
// knowing the fact state they depend on, so they're optimistically
// accepted: if the rule's conditions hold, its action is assumed
// capable of establishing the goal (§4.7 doesn't specify deeper value
// inference than "actions whose left-hand side is the goal's path").
func assignmentCanSatisfy(action grl.Action, target grl.Literal) bool {
	if action.ValueExpr.Kind != grl.ExprLiteral {
		return true
	}
	return literalsEqual(action.ValueExpr.Lit, target)
}

func literalsEqual(a, b grl.Literal) bool {
	if a.Kind != b.Kind {
		return a.Kind == "integer" && b.Kind == "number" && float64(a.Int) == b.Float ||
			a.Kind == "number" && b.Kind == "integer" && a.Float == float64(b.Int)
	}
	switch a.Kind {
	case "string":
		return a.Str == b.Str
	case "integer":
		return a.Int == b.Int
	case "number":
		return a.Float == b.Float
	case "boolean":
		return a.Bool == b.Bool
	case "null":
		return true
	default:
		return false
	}
}

// goalShape extracts (path, literal) from a goal of the form
// `Path == literal`, the only comparison shape §4.7's examples use
// for establishability search ("actions whose left-hand side is the
// goal's path"). Other operators still direct-check against Facts in
// proveAtomic but can't drive rule search, since "establishes Path <
// 10" isn't a single literal a rule's action could be matched against.
func goalShape(goal grl.Expr) (path string, target grl.Literal, ok bool) {
	if goal.Kind != grl.ExprCompare || goal.CompareOp != grl.OpEq {
		return "", grl.Literal{}, false
	}
	if goal.Left.Kind == grl.ExprPath && goal.Right.Kind == grl.ExprLiteral {
		return goal.Left.Path, goal.Right.Lit, true
	}
	if goal.Right.Kind == grl.ExprPath && goal.Left.Kind == grl.ExprLiteral {
		return goal.Right.Path, goal.Left.Lit, true
	}
	return "", grl.Literal{}, false
}

func (r *Resolver) memoize(key string, result bool) {
	if r.cache != nil {
		r.cache.Add(key, result)
	}
}

func traceStep(trace bool, goal, rule string, subs []ProofStep) *ProofStep {
	if !trace {
		return nil
	}
	return &ProofStep{Goal: goal, Rule: rule, SubGoals: subs}
}

// exprKey renders an Expr into a stable string for memoization and
// cycle detection. It doesn't need to be human-readable, only
// injective enough in practice to distinguish goals.
func exprKey(e grl.Expr) string {
	var b strings.Builder
	writeExprKey(&b, e)
	return b.String()
}

func writeExprKey(b *strings.Builder, e grl.Expr) {
	switch e.Kind {
	case grl.ExprPath:
		b.WriteString("P:")
		b.WriteString(e.Path)
	case grl.ExprLiteral:
		b.WriteString("L:")
		b.WriteString(e.Lit.Kind)
		b.WriteString(":")
		b.WriteString(e.Lit.Str)
		fmt.Fprintf(b, ":%d:%v:%t", e.Lit.Int, e.Lit.Float, e.Lit.Bool)
	case grl.ExprCall:
		b.WriteString("C:")
		b.WriteString(e.CallName)
		for _, a := range e.CallArgs {
			b.WriteString(",")
			writeExprKey(b, a)
		}
	case grl.ExprCompare:
		b.WriteString("(")
		writeExprKey(b, *e.Left)
		b.WriteString(string(e.CompareOp))
		writeExprKey(b, *e.Right)
		b.WriteString(")")
	case grl.ExprAnd:
		writeJoined(b, "&&", e.Operands)
	case grl.ExprOr:
		writeJoined(b, "||", e.Operands)
	case grl.ExprNot:
		b.WriteString("!")
		writeExprKey(b, *e.Operand)
	case grl.ExprBinaryArith:
		b.WriteString("(")
		writeExprKey(b, *e.ArithLeft)
		b.WriteString(string(e.ArithOp))
		writeExprKey(b, *e.ArithRight)
		b.WriteString(")")
	}
}

func writeJoined(b *strings.Builder, sep string, operands []grl.Expr) {
	b.WriteString("[")
	for i, o := range operands {
		if i > 0 {
			b.WriteString(sep)
		}
		writeExprKey(b, o)
	}
	b.WriteString("]")
}
