package grl

import "testing"

func TestParseSingleRule(t *testing.T) {
	src := `
rule "CheckAge" salience 10 {
	when
		Customer.Age >= 18 && Customer.Country == "US"
	then
		Customer.IsAdult = true;
		Customer.Greeting = "hi";
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	r := rules[0]
	if r.Name != "CheckAge" {
		t.Fatalf("got name %q", r.Name)
	}
	if !r.HasSalience || r.Salience != 10 {
		t.Fatalf("expected salience 10, got %+v", r)
	}
	if r.Conditions.Kind != ExprAnd {
		t.Fatalf("expected top-level AND, got %v", r.Conditions.Kind)
	}
	if len(r.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(r.Actions))
	}
}

func TestParseNoLoopAndLockOnActive(t *testing.T) {
	src := `
rule "R" no-loop lock-on-active {
	when Order.Total > 100
	then Order.Discounted = true;
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rules[0].Control.NoLoop || !rules[0].Control.LockOnActive {
		t.Fatalf("expected both control flags set, got %+v", rules[0].Control)
	}
}

func TestParseFunctionCallInCondition(t *testing.T) {
	src := `
rule "R" {
	when IsValidEmail(Customer.Email) == true
	then Customer.Valid = true;
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := rules[0].Conditions
	if cond.Kind != ExprCompare {
		t.Fatalf("expected compare, got %v", cond.Kind)
	}
	if cond.Left.Kind != ExprCall || cond.Left.CallName != "IsValidEmail" {
		t.Fatalf("expected call on left side, got %+v", cond.Left)
	}
}

func TestParseActionArithmetic(t *testing.T) {
	src := `
rule "R" {
	when Order.Total > 0
	then Order.Tax = Order.Total * 0.07 + 1;
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := rules[0].Actions[0]
	if a.Kind != ActionAssign || a.TargetPath != "Order.Tax" {
		t.Fatalf("got %+v", a)
	}
	if a.ValueExpr.Kind != ExprBinaryArith || a.ValueExpr.ArithOp != ArithAdd {
		t.Fatalf("expected top-level add, got %+v", a.ValueExpr)
	}
}

func TestParseHandlerCallAction(t *testing.T) {
	src := `
rule "R" {
	when Order.Total > 0
	then SendNotification(Order.Id, "shipped");
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := rules[0].Actions[0]
	if a.Kind != ActionHandlerCall || a.HandlerName != "SendNotification" {
		t.Fatalf("got %+v", a)
	}
	if len(a.HandlerArgs) != 2 {
		t.Fatalf("expected 2 handler args, got %d", len(a.HandlerArgs))
	}
}

func TestParseEmptySourceFails(t *testing.T) {
	if _, err := Parse("   \n // just a comment\n"); err == nil {
		t.Fatal("expected error for empty rule set")
	}
}

func TestParseDuplicateRuleNameFails(t *testing.T) {
	src := `
rule "R" { when Order.Total > 0 then Order.Ok = true; }
rule "R" { when Order.Total > 0 then Order.Ok = false; }
`
	if _, err := Parse(src); err == nil {
		t.Fatal("expected error for duplicate rule name")
	}
}

func TestParseMultipleRules(t *testing.T) {
	src := `
rule "A" { when Order.Total > 0 then Order.Ok = true; }
rule "B" { when Order.Total > 100 then Order.Big = true; }
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
}

func TestParseNestedParensInCondition(t *testing.T) {
	src := `
rule "R" {
	when (Order.Total > 0 && Order.Total < 100) || Order.Priority == "high"
	then Order.Ok = true;
}
`
	rules, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := rules[0].Conditions
	if cond.Kind != ExprOr {
		t.Fatalf("expected top-level OR, got %v", cond.Kind)
	}
}
