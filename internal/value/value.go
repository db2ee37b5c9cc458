// Package value implements the tagged-union Value type that every
// fact, condition operand, and action result flows through, plus its
// total, lossless bridge to and from JSON.
//
// The teacher's core package never needed a typed Value — it worked
// directly on interface{} produced by encoding/json (see
// core/match.go's Bindings and core/query.go's Bind). This package
// gives that same interface{} traffic a closed set of variants so the
// RETE network, GRL parser, and backward resolver can switch
// exhaustively instead of type-asserting ad hoc.
package value

import (
	"fmt"
	"math"
	"sort"
)

// Kind tags the variant carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindNumber
	KindString
	KindArray
	KindObject
	KindExpression
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Value is the tagged union described in spec §3. Only one of the
// typed fields is meaningful, selected by Kind. Object preserves
// insertion order via Keys so JSON round-trips reproduce the original
// key order.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Arr     []Value
	Obj     map[string]Value
	Keys    []string // insertion order of Obj
	ExprSrc string   // raw source, KindExpression only
}

func Null() Value                { return Value{Kind: KindNull} }
func Boolean(b bool) Value        { return Value{Kind: KindBoolean, Bool: b} }
func Integer(i int64) Value       { return Value{Kind: KindInteger, Int: i} }
func Number(f float64) Value      { return Value{Kind: KindNumber, Float: f} }
func String(s string) Value       { return Value{Kind: KindString, Str: s} }
func Array(vs []Value) Value      { return Value{Kind: KindArray, Arr: vs} }
func Expression(src string) Value { return Value{Kind: KindExpression, ExprSrc: src} }

// NewObject builds an Object from an ordered key list and a field map
// so callers control insertion order explicitly (map iteration in Go is
// randomized, which would break round-trip fidelity otherwise).
func NewObject(keys []string, fields map[string]Value) Value {
	return Value{Kind: KindObject, Obj: fields, Keys: append([]string{}, keys...)}
}

// EmptyObject returns a fresh, empty Object ready for Set.
func EmptyObject() Value {
	return Value{Kind: KindObject, Obj: map[string]Value{}}
}

// Set assigns a field on an Object Value, appending the key to Keys
// the first time it is seen. No-op (returns v unchanged) if v is not
// an Object.
func (v Value) Set(key string, field Value) Value {
	if v.Kind != KindObject {
		return v
	}
	if _, present := v.Obj[key]; !present {
		v.Keys = append(v.Keys, key)
	}
	v.Obj[key] = field
	return v
}

// Get fetches a field from an Object. Returns (Null, false) for any
// other Kind or a missing key.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Null(), false
	}
	f, ok := v.Obj[key]
	return f, ok
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy reports whether v counts as true in a boolean condition
// context: Booleans by their value, numbers by non-zero, strings and
// arrays/objects by non-empty, null is always false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBoolean:
		return v.Bool
	case KindInteger:
		return v.Int != 0
	case KindNumber:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	case KindArray:
		return len(v.Arr) > 0
	case KindObject:
		return len(v.Obj) > 0
	default:
		return false
	}
}

// AsFloat widens Integer/Number to float64. Ok is false for any other
// Kind.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindNumber:
		return v.Float, true
	default:
		return 0, false
	}
}

// Equal implements the numeric-widening equality invariant from §3:
// Integer and Number compare by widened value, NaN never equals
// itself, and every other Kind compares structurally.
func Equal(a, b Value) bool {
	if (a.Kind == KindInteger || a.Kind == KindNumber) &&
		(b.Kind == KindInteger || b.Kind == KindNumber) {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		return af == bf
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindExpression:
		return a.ExprSrc == b.ExprSrc
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !Equal(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Obj) != len(b.Obj) {
			return false
		}
		for k, av := range a.Obj {
			bv, ok := b.Obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two Values for <, <=, >, >= comparisons. Numbers
// compare numerically, strings lexically. Any other pairing is
// incomparable and ok is false.
func Compare(a, b Value) (cmp int, ok bool) {
	if (a.Kind == KindInteger || a.Kind == KindNumber) &&
		(b.Kind == KindInteger || b.Kind == KindNumber) {
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		if math.IsNaN(af) || math.IsNaN(bf) {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch {
		case a.Str < b.Str:
			return -1, true
		case a.Str > b.Str:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case KindInteger:
		return fmt.Sprintf("%d", v.Int)
	case KindNumber:
		return fmt.Sprintf("%v", v.Float)
	case KindString:
		return v.Str
	case KindExpression:
		return v.ExprSrc
	case KindArray:
		return fmt.Sprintf("%v", v.Arr)
	case KindObject:
		keys := append([]string{}, v.Keys...)
		sort.Strings(keys)
		return fmt.Sprintf("%v", keys)
	default:
		return "?"
	}
}
