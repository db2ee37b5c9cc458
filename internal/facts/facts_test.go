package facts

import (
	"testing"

	"github.com/grl-engine/grlrules/internal/value"
)

func TestRoundTripFidelity(t *testing.T) {
	src := `{"Order":{"total":150,"discount":0},"Customer":{"name":"Ann"}}`
	f, err := FromJSON([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if !f.Has("Order.total") || !f.Has("Customer.name") {
		t.Fatalf("flatten missing keys: %v", f.Paths())
	}
	out, err := f.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != src {
		t.Fatalf("got %s, want %s", out, src)
	}
}

func TestArraysNotFlattened(t *testing.T) {
	src := `{"Order":{"items":[1,2,3]}}`
	f, err := FromJSON([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	v, ok := f.Get("Order.items")
	if !ok || v.Kind.String() != "array" {
		t.Fatalf("expected Order.items to be an array leaf, got %v", v)
	}
}

func TestNonObjectRootRejected(t *testing.T) {
	_, err := FromJSON([]byte(`[1,2,3]`))
	if err == nil || !IsNonObjectRoot(err) {
		t.Fatalf("expected non-object-root error, got %v", err)
	}
}

func TestMutationByAssignment(t *testing.T) {
	f, _ := FromJSON([]byte(`{"Order":{"total":100}}`))
	f.Set("Order.discount", value.Integer(15))
	if !f.Has("Order.discount") {
		t.Fatal("expected new key to be created")
	}
	v, _ := f.Get("Order.discount")
	if v.Int != 15 {
		t.Fatalf("got %v", v)
	}
}
