// Package rete implements the RETE-style incremental network described
// in spec §3/§4.5: alpha nodes per (fact_type, predicate), multi-fact
// conditions matched by re-evaluating the cross product of the rule's
// alpha memories (there are no beta-node memories), a salience-ordered
// agenda, and insert/modify/retract working-memory operations with
// multiset handle semantics.
//
// The teacher has no RETE network at all — core/match.go evaluates a
// single When pattern against a single State snapshot per rule, with
// no shared alpha/beta memory across rules. This package is new code
// grounded directly in spec §3/§4.5's invariants, but it keeps the
// teacher's general shape for this kind of component: a small struct
// holding maps plus a mutex (core/location.go's Location), exported
// imperative verbs (Insert/Retract/FireAll mirroring core.Location's
// AddFact/RemFact/ProcessBatch), and doc comments that state the
// invariant being preserved rather than narrating the implementation.
package rete

import (
	"fmt"
	"strings"

	"github.com/grl-engine/grlrules/internal/functions"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/value"
)

// Lookup resolves a dotted fact path to a Value.
type Lookup func(path string) (value.Value, bool)

// ReferencedPaths walks an Expr and returns every fact path it reads,
// in first-appearance order with duplicates removed.
func ReferencedPaths(e grl.Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(grl.Expr)
	walk = func(e grl.Expr) {
		switch e.Kind {
		case grl.ExprPath:
			if !seen[e.Path] {
				seen[e.Path] = true
				out = append(out, e.Path)
			}
		case grl.ExprCall:
			for _, a := range e.CallArgs {
				walk(a)
			}
		case grl.ExprCompare:
			walk(*e.Left)
			walk(*e.Right)
		case grl.ExprAnd, grl.ExprOr:
			for _, o := range e.Operands {
				walk(o)
			}
		case grl.ExprNot:
			walk(*e.Operand)
		case grl.ExprBinaryArith:
			walk(*e.ArithLeft)
			walk(*e.ArithRight)
		}
	}
	walk(e)
	return out
}

// ReferencedFactTypes returns the distinct fact-type prefixes (the
// first dotted segment) of every path an Expr reads, in
// first-appearance order. A rule referencing exactly one fact type
// compiles to a single alpha node (§"Compilation"); a rule with more
// than one is matched over the cross product of its alpha memories.
func ReferencedFactTypes(e grl.Expr) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range ReferencedPaths(e) {
		t := factTypeOf(p)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func factTypeOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

func fieldOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return ""
}

// FactTypeOf exposes factTypeOf to callers outside this package — the
// engine's Facts<->Network bridge addresses fact types the same way
// the network does internally.
func FactTypeOf(path string) string { return factTypeOf(path) }

// FieldOf exposes fieldOf to callers outside this package, for the
// same reason as FactTypeOf.
func FieldOf(path string) string { return fieldOf(path) }

// Eval evaluates an Expr against a Lookup, resolving Path leaves,
// calling into functions.Call for any surviving built-in calls (most
// will already have been rewritten away by the preprocess package),
// and applying §3's comparison/boolean/arithmetic semantics.
func Eval(e grl.Expr, lookup Lookup) (value.Value, error) {
	switch e.Kind {
	case grl.ExprPath:
		v, ok := lookup(e.Path)
		if !ok {
			return value.Null(), fmt.Errorf("rete: unresolved fact path %q", e.Path)
		}
		return v, nil
	case grl.ExprLiteral:
		return literalValue(e.Lit), nil
	case grl.ExprCall:
		args := make([]value.Value, len(e.CallArgs))
		for i, a := range e.CallArgs {
			v, err := Eval(a, lookup)
			if err != nil {
				return value.Null(), err
			}
			args[i] = v
		}
		return functions.Call(e.CallName, args)
	case grl.ExprCompare:
		lv, err := Eval(*e.Left, lookup)
		if err != nil {
			return value.Null(), err
		}
		rv, err := Eval(*e.Right, lookup)
		if err != nil {
			return value.Null(), err
		}
		return compareValues(e.CompareOp, lv, rv)
	case grl.ExprAnd:
		for _, o := range e.Operands {
			v, err := Eval(o, lookup)
			if err != nil {
				return value.Null(), err
			}
			if !v.Truthy() {
				return value.Boolean(false), nil
			}
		}
		return value.Boolean(true), nil
	case grl.ExprOr:
		for _, o := range e.Operands {
			v, err := Eval(o, lookup)
			if err != nil {
				return value.Null(), err
			}
			if v.Truthy() {
				return value.Boolean(true), nil
			}
		}
		return value.Boolean(false), nil
	case grl.ExprNot:
		v, err := Eval(*e.Operand, lookup)
		if err != nil {
			return value.Null(), err
		}
		return value.Boolean(!v.Truthy()), nil
	case grl.ExprBinaryArith:
		return evalArith(e, lookup)
	default:
		return value.Null(), fmt.Errorf("rete: unhandled expression kind %v", e.Kind)
	}
}

func literalValue(l grl.Literal) value.Value {
	switch l.Kind {
	case "string":
		return value.String(l.Str)
	case "integer":
		return value.Integer(l.Int)
	case "number":
		return value.Number(l.Float)
	case "boolean":
		return value.Boolean(l.Bool)
	default:
		return value.Null()
	}
}

func compareValues(op grl.Op, l, r value.Value) (value.Value, error) {
	switch op {
	case grl.OpEq:
		return value.Boolean(value.Equal(l, r)), nil
	case grl.OpNeq:
		return value.Boolean(!value.Equal(l, r)), nil
	}
	cmp, ok := value.Compare(l, r)
	if !ok {
		return value.Null(), fmt.Errorf("rete: cannot order %s and %s", l.Kind, r.Kind)
	}
	switch op {
	case grl.OpLt:
		return value.Boolean(cmp < 0), nil
	case grl.OpLte:
		return value.Boolean(cmp <= 0), nil
	case grl.OpGt:
		return value.Boolean(cmp > 0), nil
	case grl.OpGte:
		return value.Boolean(cmp >= 0), nil
	default:
		return value.Null(), fmt.Errorf("rete: unknown comparison operator %q", op)
	}
}

func evalArith(e grl.Expr, lookup Lookup) (value.Value, error) {
	lv, err := Eval(*e.ArithLeft, lookup)
	if err != nil {
		return value.Null(), err
	}
	rv, err := Eval(*e.ArithRight, lookup)
	if err != nil {
		return value.Null(), err
	}
	lf, ok := lv.AsFloat()
	if !ok {
		return value.Null(), fmt.Errorf("rete: arithmetic operand is not numeric: %s", lv.Kind)
	}
	rf, ok := rv.AsFloat()
	if !ok {
		return value.Null(), fmt.Errorf("rete: arithmetic operand is not numeric: %s", rv.Kind)
	}
	bothInt := lv.Kind == value.KindInteger && rv.Kind == value.KindInteger
	switch e.ArithOp {
	case grl.ArithAdd:
		if bothInt {
			return value.Integer(lv.Int + rv.Int), nil
		}
		return value.Number(lf + rf), nil
	case grl.ArithSub:
		if bothInt {
			return value.Integer(lv.Int - rv.Int), nil
		}
		return value.Number(lf - rf), nil
	case grl.ArithMul:
		if bothInt {
			return value.Integer(lv.Int * rv.Int), nil
		}
		return value.Number(lf * rf), nil
	case grl.ArithDiv:
		return value.Number(lf / rf), nil
	default:
		return value.Null(), fmt.Errorf("rete: unknown arithmetic operator %q", e.ArithOp)
	}
}
