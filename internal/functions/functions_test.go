package functions

import (
	"testing"

	"github.com/grl-engine/grlrules/internal/value"
)

func mustCall(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	v, err := Call(name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestRoundReturnsNumberEvenWhenIntegerValued(t *testing.T) {
	v := mustCall(t, "Round", value.Number(3.7), value.Integer(0))
	if v.Kind != value.KindNumber {
		t.Fatalf("Round should return a Number per the preserved quirk, got %v", v.Kind)
	}
	if v.Float != 4.0 {
		t.Fatalf("got %v", v.Float)
	}
}

func TestSqrtNegativeFails(t *testing.T) {
	if _, err := Call("Sqrt", []value.Value{value.Number(-1)}); err == nil {
		t.Fatal("expected error for Sqrt(-1)")
	}
}

func TestIsValidEmail(t *testing.T) {
	cases := map[string]bool{
		"user@example.com": true,
		"not-an-email":     false,
	}
	for in, want := range cases {
		v := mustCall(t, "IsValidEmail", value.String(in))
		if v.Bool != want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", in, v.Bool, want)
		}
	}
}

func TestSubstringUTF8Aware(t *testing.T) {
	v := mustCall(t, "Substring", value.String("héllo"), value.Integer(1), value.Integer(3))
	if v.Str != "éll" {
		t.Fatalf("got %q", v.Str)
	}
}

func TestJsonGetSetDottedPath(t *testing.T) {
	obj := value.EmptyObject().Set("user", value.EmptyObject())
	set := mustCall(t, "JsonSet", obj, value.String("user.name"), value.String("Alice"))
	got := mustCall(t, "JsonGet", set, value.String("user.name"))
	if got.Str != "Alice" {
		t.Fatalf("got %q", got.Str)
	}
}

func TestUnknownFunction(t *testing.T) {
	if _, err := Call("NoSuchFunction", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAddDays(t *testing.T) {
	v := mustCall(t, "AddDays", value.String("2024-01-01"), value.Integer(10))
	if v.Str != "2024-01-11" {
		t.Fatalf("got %q", v.Str)
	}
}
