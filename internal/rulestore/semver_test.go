package rulestore

import "testing"

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.2.3-beta")
	if err != nil {
		t.Fatal(err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 || v.Pre != "beta" {
		t.Fatalf("unexpected parse result: %+v", v)
	}
}

func TestParseVersionRejectsMalformed(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.x", "", "1.2.3.4"} {
		if _, err := ParseVersion(s); err == nil {
			t.Fatalf("expected error parsing %q", s)
		}
	}
}

func TestCompareOrdersNumericFieldsFirst(t *testing.T) {
	a, _ := ParseVersion("1.2.3")
	b, _ := ParseVersion("1.10.0")
	if Compare(a, b) >= 0 {
		t.Fatal("expected 1.2.3 < 1.10.0")
	}
}

func TestCompareReleaseOutranksPrerelease(t *testing.T) {
	release, _ := ParseVersion("1.0.0")
	pre, _ := ParseVersion("1.0.0-rc1")
	if Compare(release, pre) <= 0 {
		t.Fatal("expected 1.0.0 > 1.0.0-rc1")
	}
}

func TestConstraintCaret(t *testing.T) {
	c, err := ParseConstraint("^1.2.0")
	if err != nil {
		t.Fatal(err)
	}
	match, _ := ParseVersion("1.9.0")
	noMatch, _ := ParseVersion("2.0.0")
	older, _ := ParseVersion("1.1.0")
	if !c.Satisfies(match) {
		t.Fatal("expected ^1.2.0 to match 1.9.0")
	}
	if c.Satisfies(noMatch) {
		t.Fatal("expected ^1.2.0 to reject 2.0.0")
	}
	if c.Satisfies(older) {
		t.Fatal("expected ^1.2.0 to reject 1.1.0")
	}
}

func TestBestMatchPicksHighestSatisfying(t *testing.T) {
	versions := []string{"1.0.0", "1.2.0", "1.9.5", "2.0.0"}
	best, ok := BestMatch(versions, "^1.0.0")
	if !ok || best != "1.9.5" {
		t.Fatalf("expected best=1.9.5, got %q ok=%v", best, ok)
	}
}

func TestBestMatchEmptyConstraintMatchesAny(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0"}
	best, ok := BestMatch(versions, "")
	if !ok || best != "2.0.0" {
		t.Fatalf("expected best=2.0.0, got %q ok=%v", best, ok)
	}
}
