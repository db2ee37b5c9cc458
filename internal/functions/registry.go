// Package functions implements the fixed built-in function registry
// named in spec §4.3: a closed, string-keyed table of pure functions
// over value.Value, grouped into date/time, string, math, and JSON
// categories.
//
// The teacher has no equivalent fixed registry — core/javascript.go
// instead compiles and runs arbitrary Otto Javascript per action
// (core.Action.Code). This package is new code built in the teacher's
// idiom (a package-level registry populated in init, looked up by
// name, invoked uniformly — the same shape as the teacher's action
// handler dispatch in core/actions.go's getActionFunc), but the
// functions themselves are total and pure, per spec Non-goals: no
// general-purpose scripting beyond this fixed set.
package functions

import (
	"fmt"

	"github.com/grl-engine/grlrules/internal/value"
)

// Func is a built-in's signature: total over its arguments, returning
// either a Value or an Error describing the offending argument.
type Func func(args []value.Value) (value.Value, error)

// ArgError names the offending argument index, per spec §4.3.
type ArgError struct {
	Function string
	Index    int
	Msg      string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: argument %d: %s", e.Function, e.Index, e.Msg)
}

func argErr(fn string, idx int, format string, args ...interface{}) error {
	return &ArgError{Function: fn, Index: idx, Msg: fmt.Sprintf(format, args...)}
}

var registry = map[string]Func{}

func register(name string, f Func) {
	registry[name] = f
}

// Lookup returns the built-in registered under name.
func Lookup(name string) (Func, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names returns every registered built-in name, for introspection
// (the function_call / debug_list_functions external interface).
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

// Known reports whether name is a registered built-in, letting
// callers (the preprocess package) distinguish a real function call
// from an incidental Path(...)-shaped match in source text.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Call looks up and invokes a built-in by name. Returns an
// "unknown function" error (a semantic error per §7 taxonomy) if name
// isn't registered.
func Call(name string, args []value.Value) (value.Value, error) {
	f, ok := registry[name]
	if !ok {
		return value.Null(), fmt.Errorf("unknown function: %s", name)
	}
	return f(args)
}

func requireArgs(fn string, args []value.Value, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s requires at least %d argument(s), got %d", fn, n, len(args))
	}
	return nil
}

func asString(fn string, args []value.Value, i int) (string, error) {
	if i >= len(args) {
		return "", argErr(fn, i, "missing argument")
	}
	if args[i].Kind != value.KindString {
		return "", argErr(fn, i, "must be a string, got %s", args[i].Kind)
	}
	return args[i].Str, nil
}

func asFloat(fn string, args []value.Value, i int) (float64, error) {
	if i >= len(args) {
		return 0, argErr(fn, i, "missing argument")
	}
	f, ok := args[i].AsFloat()
	if !ok {
		return 0, argErr(fn, i, "must be a number, got %s", args[i].Kind)
	}
	return f, nil
}

func asInt(fn string, args []value.Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, argErr(fn, i, "missing argument")
	}
	switch args[i].Kind {
	case value.KindInteger:
		return args[i].Int, nil
	case value.KindNumber:
		return int64(args[i].Float), nil
	default:
		return 0, argErr(fn, i, "must be a number, got %s", args[i].Kind)
	}
}
