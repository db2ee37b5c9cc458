// Package preprocess implements the built-in function-call rewrite
// pass that runs on GRL source text before it reaches the grl parser
// (spec §4.4). It is a pattern-based scanner, not a tokenizer: it
// finds "Name(args)" call sites with a regular expression and does
// not recurse into nested calls: for Func(Other(x)) only the innermost
// call Other(x) matches and is rewritten, and the outer Func(...) text
// is left as-is, since the output is not re-scanned.
//
// The teacher has no analogous text-rewrite stage — core/js.go
// evaluates a rule's Condition/Action as an embedded otto script
// instead of preprocessing a separate surface grammar. This package's
// two-context (when/then) scanning is new, grounded directly in
// spec §4.4, but keeps the teacher's style of small, well-named
// package-level helpers over one monolithic function.
package preprocess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/functions"
	"github.com/grl-engine/grlrules/internal/value"
)

var (
	ruleBlockRe     = regexp.MustCompile(`(?s)\bwhen\b(.*?)\bthen\b(.*?)(\}\s*(?:rule\b|$))`)
	callRe          = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\(([^()]*)\)`)
	contextObjectRe = regexp.MustCompile(`([A-Z][a-zA-Z0-9_]*)\.`)
)

// Context distinguishes where a call site was found, since the
// rewrite differs: condition context injects a synthetic fact key,
// action context substitutes a literal.
type Context int

const (
	ConditionContext Context = iota
	ActionContext
)

// Run rewrites every top-level built-in function call in src,
// resolving arguments against facts, and returns the rewritten
// source ready for grl.Parse, plus every synthetic fact key it
// injected for a condition-context substitution. Callers strip those
// keys from facts before handing output back across the external
// interface (§4.4 step 5's keys are an internal evaluation aid, not
// engine output). Run never mutates facts except to add those keys.
func Run(src string, f *facts.Facts) (string, []string, error) {
	var out strings.Builder
	last := 0
	counter := 0
	var syntheticKeys []string

	for _, loc := range ruleBlockRe.FindAllStringSubmatchIndex(src, -1) {
		whenStart, whenEnd := loc[2], loc[3]
		thenStart, thenEnd := loc[4], loc[5]

		out.WriteString(src[last:whenStart])
		rewrittenWhen, err := rewriteCalls(src[whenStart:whenEnd], ConditionContext, f, &counter, &syntheticKeys)
		if err != nil {
			return "", nil, err
		}
		out.WriteString(rewrittenWhen)

		out.WriteString(src[whenEnd:thenStart])
		rewrittenThen, err := rewriteCalls(src[thenStart:thenEnd], ActionContext, f, &counter, &syntheticKeys)
		if err != nil {
			return "", nil, err
		}
		out.WriteString(rewrittenThen)

		last = thenEnd
	}
	out.WriteString(src[last:])
	return out.String(), syntheticKeys, nil
}

func rewriteCalls(segment string, ctx Context, f *facts.Facts, counter *int, syntheticKeys *[]string) (string, error) {
	var rewriteErr error
	result := callRe.ReplaceAllStringFunc(segment, func(match string) string {
		if rewriteErr != nil {
			return match
		}
		sub := callRe.FindStringSubmatch(match)
		name, rawArgs := sub[1], sub[2]
		if !functions.Known(name) {
			return match
		}
		args, err := resolveArgs(rawArgs, f)
		if err != nil {
			rewriteErr = err
			return match
		}
		result, err := functions.Call(name, args)
		if err != nil {
			rewriteErr = fmt.Errorf("preprocess: %s: %w", name, err)
			return match
		}
		switch ctx {
		case ConditionContext:
			key := syntheticKey(rawArgs, *counter, name)
			*counter++
			f.Set(key, result)
			*syntheticKeys = append(*syntheticKeys, key)
			return key
		default:
			return literalText(result)
		}
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return result, nil
}

// syntheticKey builds the condition-context injection key per spec
// §4.4 step 5: "<Context>.__func_<i>_<name>", where Context is the
// first path-shaped component found anywhere in the call's raw
// argument text, defaulting to "Result" when none is found. Grounded
// on the original implementation's extract_context_object, which
// lowercases the function name and nests the computed field under
// that context object rather than injecting a bare top-level key.
func syntheticKey(rawArgs string, i int, name string) string {
	context := "Result"
	if m := contextObjectRe.FindStringSubmatch(rawArgs); m != nil {
		context = m[1]
	}
	return fmt.Sprintf("%s.__func_%d_%s", context, i, strings.ToLower(name))
}

// resolveArgs splits a flat, non-nested argument list on commas and
// resolves each argument against facts (dotted path) or as a literal
// (string/number/boolean/null).
func resolveArgs(raw string, f *facts.Facts) ([]value.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := splitArgs(raw)
	args := make([]value.Value, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := resolveOne(p, f)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// splitArgs splits on top-level commas only; this scanner never sees
// nested calls (those are excluded by not matching inner parens), so
// a plain comma split with quote-awareness is sufficient.
func splitArgs(raw string) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			inString = !inString
		case inString:
			continue
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	parts = append(parts, raw[start:])
	return parts
}

func resolveOne(token string, f *facts.Facts) (value.Value, error) {
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		return value.String(token[1 : len(token)-1]), nil
	}
	switch token {
	case "true":
		return value.Boolean(true), nil
	case "false":
		return value.Boolean(false), nil
	case "null", "nil":
		return value.Null(), nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return value.Integer(i), nil
	}
	if fl, err := strconv.ParseFloat(token, 64); err == nil {
		return value.Number(fl), nil
	}
	if v, ok := f.Get(token); ok {
		return v, nil
	}
	return value.Null(), fmt.Errorf("preprocess: cannot resolve argument %q against facts", token)
}

// literalText renders a Value as GRL literal syntax for action-context
// substitution (§4.4: "the call site is replaced by the literal
// result text").
func literalText(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return strconv.Quote(v.Str)
	case value.KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case value.KindNumber:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case value.KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case value.KindNull:
		return "null"
	default:
		return "null"
	}
}
