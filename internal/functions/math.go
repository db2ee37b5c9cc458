package functions

import (
	"math"

	"github.com/grl-engine/grlrules/internal/value"
)

func init() {
	register("Round", round)
	register("Abs", abs)
	register("Min", minFn)
	register("Max", maxFn)
	register("Floor", floorFn)
	register("Ceil", ceilFn)
	register("Sqrt", sqrtFn)
}

// round returns a Number even when the result is integer-valued; per
// spec §9 design note (c), this is a known quirk of the original
// implementation and is preserved deliberately, not a bug.
func round(args []value.Value) (value.Value, error) {
	if err := requireArgs("Round", args, 1); err != nil {
		return value.Null(), err
	}
	n, err := asFloat("Round", args, 0)
	if err != nil {
		return value.Null(), err
	}
	decimals := int64(0)
	if len(args) > 1 {
		decimals, err = asInt("Round", args, 1)
		if err != nil {
			return value.Null(), err
		}
	}
	mult := math.Pow(10, float64(decimals))
	return value.Number(math.Round(n*mult) / mult), nil
}

func abs(args []value.Value) (value.Value, error) {
	if err := requireArgs("Abs", args, 1); err != nil {
		return value.Null(), err
	}
	n, err := asFloat("Abs", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Number(math.Abs(n)), nil
}

func minFn(args []value.Value) (value.Value, error) {
	if err := requireArgs("Min", args, 2); err != nil {
		return value.Null(), err
	}
	m := math.Inf(1)
	for i := range args {
		n, err := asFloat("Min", args, i)
		if err != nil {
			return value.Null(), err
		}
		if n < m {
			m = n
		}
	}
	return value.Number(m), nil
}

func maxFn(args []value.Value) (value.Value, error) {
	if err := requireArgs("Max", args, 2); err != nil {
		return value.Null(), err
	}
	m := math.Inf(-1)
	for i := range args {
		n, err := asFloat("Max", args, i)
		if err != nil {
			return value.Null(), err
		}
		if n > m {
			m = n
		}
	}
	return value.Number(m), nil
}

func floorFn(args []value.Value) (value.Value, error) {
	if err := requireArgs("Floor", args, 1); err != nil {
		return value.Null(), err
	}
	n, err := asFloat("Floor", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Number(math.Floor(n)), nil
}

func ceilFn(args []value.Value) (value.Value, error) {
	if err := requireArgs("Ceil", args, 1); err != nil {
		return value.Null(), err
	}
	n, err := asFloat("Ceil", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Number(math.Ceil(n)), nil
}

// sqrtFn fails on a negative argument per spec §4.3.
func sqrtFn(args []value.Value) (value.Value, error) {
	if err := requireArgs("Sqrt", args, 1); err != nil {
		return value.Null(), err
	}
	n, err := asFloat("Sqrt", args, 0)
	if err != nil {
		return value.Null(), err
	}
	if n < 0 {
		return value.Null(), argErr("Sqrt", 0, "cannot take square root of negative number %v", n)
	}
	return value.Number(math.Sqrt(n)), nil
}
