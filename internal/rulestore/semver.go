package rulestore

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed MAJOR.MINOR.PATCH[-PRE] semantic version, per
// SUPPLEMENTED FEATURES item 5's version-resolution requirement. Build
// metadata (a trailing "+...") isn't part of this spec's rule-version
// vocabulary and is rejected rather than silently ignored.
type Version struct {
	Major, Minor, Patch int
	Pre                 string
}

func ParseVersion(s string) (Version, error) {
	var v Version
	core := s
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core = s[:i]
		v.Pre = s[i+1:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("rulestore: invalid version %q: expected MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("rulestore: invalid version %q: component %q is not a non-negative integer", s, p)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Compare orders versions per semver precedence: numeric fields
// first, then a version without a pre-release outranks one with the
// same numeric fields and a pre-release tag. Pre-release tags
// themselves compare lexically, which is simpler than semver's full
// dot-separated-identifier comparison but matches every pre-release
// tag this module's own rule sets use ("beta", "rc1", ...).
func Compare(a, b Version) int {
	if d := a.Major - b.Major; d != 0 {
		return sign(d)
	}
	if d := a.Minor - b.Minor; d != 0 {
		return sign(d)
	}
	if d := a.Patch - b.Patch; d != 0 {
		return sign(d)
	}
	switch {
	case a.Pre == "" && b.Pre == "":
		return 0
	case a.Pre == "":
		return 1
	case b.Pre == "":
		return -1
	case a.Pre < b.Pre:
		return -1
	case a.Pre > b.Pre:
		return 1
	default:
		return 0
	}
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}

// Constraint is a comparison operator paired with a version bound,
// e.g. ">=1.2.0" or "^1.2.0" (caret: same major, >= the given
// version). An empty constraint string matches any version.
type Constraint struct {
	op  string
	ver Version
}

func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, nil
	}
	for _, op := range []string{">=", "<=", "==", "^", ">", "<"} {
		if strings.HasPrefix(s, op) {
			v, err := ParseVersion(strings.TrimSpace(strings.TrimPrefix(s, op)))
			if err != nil {
				return Constraint{}, err
			}
			return Constraint{op: op, ver: v}, nil
		}
	}
	v, err := ParseVersion(s)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{op: "==", ver: v}, nil
}

func (c Constraint) Satisfies(v Version) bool {
	if c.op == "" {
		return true
	}
	cmp := Compare(v, c.ver)
	switch c.op {
	case "==":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "^":
		return v.Major == c.ver.Major && cmp >= 0
	default:
		return false
	}
}

// BestMatch picks the highest version in versions satisfying
// constraint. ok is false if versions is empty, constraint can't
// parse, or nothing matches.
func BestMatch(versions []string, constraint string) (string, bool) {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return "", false
	}
	var best Version
	var bestRaw string
	found := false
	for _, raw := range versions {
		v, err := ParseVersion(raw)
		if err != nil {
			continue
		}
		if !c.Satisfies(v) {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best, bestRaw, found = v, raw, true
		}
	}
	return bestRaw, found
}
