package value

import (
	"math"
	"testing"
)

func TestEqualWidensIntegerAndNumber(t *testing.T) {
	if !Equal(Integer(4), Number(4.0)) {
		t.Fail()
	}
}

func TestEqualNaNNeverEqual(t *testing.T) {
	if Equal(Number(math.NaN()), Number(math.NaN())) {
		t.Fail()
	}
}

func TestCompareStrings(t *testing.T) {
	cmp, ok := Compare(String("a"), String("b"))
	if !ok || cmp >= 0 {
		t.Fail()
	}
}

func TestCompareIncomparable(t *testing.T) {
	if _, ok := Compare(String("a"), Boolean(true)); ok {
		t.Fail()
	}
}

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := EmptyObject()
	o = o.Set("b", Integer(2))
	o = o.Set("a", Integer(1))
	want := []string{"b", "a"}
	if len(o.Keys) != len(want) {
		t.Fatalf("got %v", o.Keys)
	}
	for i, k := range want {
		if o.Keys[i] != k {
			t.Fatalf("got %v, want %v", o.Keys, want)
		}
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null(), false},
		{Boolean(false), false},
		{Integer(0), false},
		{String(""), false},
		{Array(nil), false},
		{Integer(1), true},
		{String("x"), true},
	}
	for _, c := range cases {
		if c.v.Truthy() != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, c.v.Truthy(), c.want)
		}
	}
}
