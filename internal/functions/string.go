package functions

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/grl-engine/grlrules/internal/value"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func init() {
	register("IsValidEmail", isValidEmail)
	register("Contains", contains)
	register("RegexMatch", regexMatch)
	register("ToUpper", toUpper)
	register("ToLower", toLower)
	register("Trim", trim)
	register("Length", length)
	register("Substring", substring)
}

func isValidEmail(args []value.Value) (value.Value, error) {
	if err := requireArgs("IsValidEmail", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("IsValidEmail", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Boolean(emailPattern.MatchString(s)), nil
}

func contains(args []value.Value) (value.Value, error) {
	if err := requireArgs("Contains", args, 2); err != nil {
		return value.Null(), err
	}
	haystack, err := asString("Contains", args, 0)
	if err != nil {
		return value.Null(), err
	}
	needle, err := asString("Contains", args, 1)
	if err != nil {
		return value.Null(), err
	}
	return value.Boolean(strings.Contains(haystack, needle)), nil
}

// regexMatch compiles 'pattern' per POSIX-style extended syntax per
// spec §4.3 and reports whether it matches anywhere in 'text'.
func regexMatch(args []value.Value) (value.Value, error) {
	if err := requireArgs("RegexMatch", args, 2); err != nil {
		return value.Null(), err
	}
	text, err := asString("RegexMatch", args, 0)
	if err != nil {
		return value.Null(), err
	}
	pattern, err := asString("RegexMatch", args, 1)
	if err != nil {
		return value.Null(), err
	}
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return value.Null(), argErr("RegexMatch", 1, "invalid regex: %v", err)
	}
	return value.Boolean(re.MatchString(text)), nil
}

func toUpper(args []value.Value) (value.Value, error) {
	if err := requireArgs("ToUpper", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("ToUpper", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.String(strings.ToUpper(s)), nil
}

func toLower(args []value.Value) (value.Value, error) {
	if err := requireArgs("ToLower", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("ToLower", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.String(strings.ToLower(s)), nil
}

func trim(args []value.Value) (value.Value, error) {
	if err := requireArgs("Trim", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("Trim", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.String(strings.TrimSpace(s)), nil
}

// length reports the UTF-8 rune count, per spec §4.3 "UTF-8-aware".
func length(args []value.Value) (value.Value, error) {
	if err := requireArgs("Length", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("Length", args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Integer(int64(utf8.RuneCountInString(s))), nil
}

// substring extracts 'len' runes starting at rune offset 'start'.
// Out-of-range start/len are clamped rather than erroring, matching
// the forgiving style of the other string built-ins.
func substring(args []value.Value) (value.Value, error) {
	if err := requireArgs("Substring", args, 3); err != nil {
		return value.Null(), err
	}
	s, err := asString("Substring", args, 0)
	if err != nil {
		return value.Null(), err
	}
	start, err := asInt("Substring", args, 1)
	if err != nil {
		return value.Null(), err
	}
	n, err := asInt("Substring", args, 2)
	if err != nil {
		return value.Null(), err
	}
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if start > int64(len(runes)) {
		start = int64(len(runes))
	}
	end := start + n
	if end > int64(len(runes)) {
		end = int64(len(runes))
	}
	if end < start {
		end = start
	}
	return value.String(string(runes[start:end])), nil
}
