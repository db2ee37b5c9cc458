package rete

import (
	stderrors "errors"
	"testing"

	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/value"
)

func mustRules(t *testing.T, src string) []grl.Rule {
	t.Helper()
	rules, err := grl.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return rules
}

func TestSingleTypeRuleFiresOnMatch(t *testing.T) {
	rules := mustRules(t, `
rule "Adult" { when Customer.Age >= 18 then Customer.IsAdult = true; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	n.Insert("Customer", map[string]value.Value{"Age": value.Integer(21)})

	var fired []string
	_, err := n.FireAll(10, func(rule grl.Rule, handles []Handle) error {
		fired = append(fired, rule.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(fired) != 1 || fired[0] != "Adult" {
		t.Fatalf("expected Adult to fire once, got %v", fired)
	}
}

func TestRuleDoesNotFireWhenConditionFalse(t *testing.T) {
	rules := mustRules(t, `
rule "Adult" { when Customer.Age >= 18 then Customer.IsAdult = true; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	n.Insert("Customer", map[string]value.Value{"Age": value.Integer(10)})

	fired, err := n.FireAll(10, func(grl.Rule, []Handle) error { return nil })
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("expected no firing, got %v", fired)
	}
}

func TestJoinAcrossTwoFactTypes(t *testing.T) {
	rules := mustRules(t, `
rule "BigSpender" { when Order.Total > 100 && Customer.Vip == true then Order.Discount = true; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	n.Insert("Order", map[string]value.Value{"Total": value.Number(150)})
	n.Insert("Customer", map[string]value.Value{"Vip": value.Boolean(true)})

	fired, err := n.FireAll(10, func(grl.Rule, []Handle) error { return nil })
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("expected 1 firing, got %d", len(fired))
	}
}

func TestSalienceOrdering(t *testing.T) {
	rules := mustRules(t, `
rule "Low" salience 5 { when Order.Total > 0 then Order.A = true; }
rule "High" salience 10 { when Order.Total > 0 then Order.B = true; }
`)
	n := NewNetwork(nil)
	for _, r := range rules {
		if err := n.Compile(r); err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	n.Insert("Order", map[string]value.Value{"Total": value.Number(10)})

	var order []string
	_, err := n.FireAll(10, func(rule grl.Rule, handles []Handle) error {
		order = append(order, rule.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(order) != 2 || order[0] != "High" || order[1] != "Low" {
		t.Fatalf("expected High before Low, got %v", order)
	}
}

func TestNoLoopPreventsRefiring(t *testing.T) {
	rules := mustRules(t, `
rule "Once" no-loop { when Order.Total > 0 then Order.Total = Order.Total + 1; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	h := n.Insert("Order", map[string]value.Value{"Total": value.Number(10)})

	count := 0
	_, err := n.FireAll(20, func(rule grl.Rule, handles []Handle) error {
		count++
		// simulate the action re-triggering a modify on the same fact
		return n.Modify(h, map[string]value.Value{"Total": value.Number(11)})
	})
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 firing under no-loop, got %d", count)
	}
}

func TestRetractCancelsPendingActivation(t *testing.T) {
	rules := mustRules(t, `
rule "Adult" { when Customer.Age >= 18 then Customer.IsAdult = true; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	h := n.Insert("Customer", map[string]value.Value{"Age": value.Integer(21)})
	n.Retract(h)

	fired, err := n.FireAll(10, func(grl.Rule, []Handle) error { return nil })
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("expected no firing after retract, got %v", fired)
	}
}

func TestFireAllReportsIterationCapExceeded(t *testing.T) {
	rules := mustRules(t, `
rule "Spin" { when Order.Total > 0 then Order.Total = Order.Total + 1; }
`)
	n := NewNetwork(nil)
	if err := n.Compile(rules[0]); err != nil {
		t.Fatalf("compile: %v", err)
	}
	h := n.Insert("Order", map[string]value.Value{"Total": value.Number(1)})

	_, err := n.FireAll(5, func(rule grl.Rule, handles []Handle) error {
		return n.Modify(h, map[string]value.Value{"Total": value.Number(2)})
	})
	if err == nil {
		t.Fatal("expected an error when the iteration cap is exceeded with an activation still pending")
	}
	var limitErr *errors.LimitError
	if !stderrors.As(err, &limitErr) {
		t.Fatalf("expected a *errors.LimitError, got %T: %v", err, err)
	}
}
