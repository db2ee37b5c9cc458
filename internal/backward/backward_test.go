package backward

import (
	"testing"

	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/value"
)

func boolValue(b bool) value.Value { return value.Boolean(b) }
func intValue(i int64) value.Value { return value.Integer(i) }

func eq(path string, lit grl.Literal) grl.Expr {
	return grl.Expr{
		Kind:      grl.ExprCompare,
		CompareOp: grl.OpEq,
		Left:      &grl.Expr{Kind: grl.ExprPath, Path: path},
		Right:     &grl.Expr{Kind: grl.ExprLiteral, Lit: lit},
	}
}

func boolLit(b bool) grl.Literal { return grl.Literal{Kind: "boolean", Bool: b} }

func TestProveDirectFromFacts(t *testing.T) {
	f := facts.New()
	f.Set("User.CanVote", boolValue(true))

	goal := eq("User.CanVote", boolLit(true))
	r, err := NewResolver(nil, f, DefaultConfig(), 0)
	if err != nil {
		t.Fatal(err)
	}
	res := r.Query(goal)
	if !res.Provable {
		t.Fatal("expected directly provable goal")
	}
	if res.Proof == nil || res.Proof.Rule != "" {
		t.Fatalf("expected direct proof with no rule, got %+v", res.Proof)
	}
}

func TestProveViaEstablishingRule(t *testing.T) {
	f := facts.New()
	f.Set("User.Age", intValue(21))

	rule := grl.Rule{
		Name:       "GrantVote",
		Conditions: grl.Expr{Kind: grl.ExprCompare, CompareOp: grl.OpGte, Left: &grl.Expr{Kind: grl.ExprPath, Path: "User.Age"}, Right: &grl.Expr{Kind: grl.ExprLiteral, Lit: grl.Literal{Kind: "integer", Int: 18}}},
		Actions: []grl.Action{
			{Kind: grl.ActionAssign, TargetPath: "User.CanVote", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}},
		},
	}

	goal := eq("User.CanVote", boolLit(true))
	r, err := NewResolver([]grl.Rule{rule}, f, DefaultConfig(), 10)
	if err != nil {
		t.Fatal(err)
	}
	res := r.Query(goal)
	if !res.Provable {
		t.Fatal("expected goal provable via establishing rule")
	}
	if res.Proof == nil || res.Proof.Rule != "GrantVote" {
		t.Fatalf("expected proof trace naming GrantVote, got %+v", res.Proof)
	}
	if res.Stats.RulesEvaluated == 0 {
		t.Fatal("expected at least one rule evaluated")
	}
}

func TestProveFailsWhenSubGoalUnreachable(t *testing.T) {
	f := facts.New()
	f.Set("User.Age", intValue(10))

	rule := grl.Rule{
		Name:       "GrantVote",
		Conditions: grl.Expr{Kind: grl.ExprCompare, CompareOp: grl.OpGte, Left: &grl.Expr{Kind: grl.ExprPath, Path: "User.Age"}, Right: &grl.Expr{Kind: grl.ExprLiteral, Lit: grl.Literal{Kind: "integer", Int: 18}}},
		Actions: []grl.Action{
			{Kind: grl.ActionAssign, TargetPath: "User.CanVote", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}},
		},
	}

	goal := eq("User.CanVote", boolLit(true))
	r, err := NewResolver([]grl.Rule{rule}, f, DefaultConfig(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if r.CanProve(goal) {
		t.Fatal("expected goal unprovable, age condition fails")
	}
}

func TestProveDetectsCycleWithoutHanging(t *testing.T) {
	f := facts.New()

	// Rule A establishes Flag.A but requires Flag.B; rule B establishes
	// Flag.B but requires Flag.A, a cycle the memoization/visiting guard must break instead of
	// recursing forever.
	ruleA := grl.Rule{
		Name:       "A",
		Conditions: eq("Flag.B", boolLit(true)),
		Actions: []grl.Action{
			{Kind: grl.ActionAssign, TargetPath: "Flag.A", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}},
		},
	}
	ruleB := grl.Rule{
		Name:       "B",
		Conditions: eq("Flag.A", boolLit(true)),
		Actions: []grl.Action{
			{Kind: grl.ActionAssign, TargetPath: "Flag.B", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}},
		},
	}

	goal := eq("Flag.A", boolLit(true))
	r, err := NewResolver([]grl.Rule{ruleA, ruleB}, f, DefaultConfig(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if r.CanProve(goal) {
		t.Fatal("expected circular goal to be unprovable")
	}
}

func TestMemoizationCachesRepeatedGoal(t *testing.T) {
	f := facts.New()
	f.Set("User.CanVote", boolValue(true))
	goal := eq("User.CanVote", boolLit(true))

	r, err := NewResolver(nil, f, DefaultConfig(), 10)
	if err != nil {
		t.Fatal(err)
	}
	first := r.Query(goal)
	second := r.Query(goal)
	if !first.Provable || !second.Provable {
		t.Fatal("expected both queries provable")
	}
}

func TestMaxDepthBoundsRecursion(t *testing.T) {
	f := facts.New()
	f.Set("Flag.Three", boolValue(true))
	cfg := DefaultConfig()
	cfg.MaxDepth = 1

	rules := []grl.Rule{
		{
			Name:       "Chain1",
			Conditions: eq("Flag.Two", boolLit(true)),
			Actions:    []grl.Action{{Kind: grl.ActionAssign, TargetPath: "Flag.One", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}}},
		},
		{
			Name:       "Chain2",
			Conditions: eq("Flag.Three", boolLit(true)),
			Actions:    []grl.Action{{Kind: grl.ActionAssign, TargetPath: "Flag.Two", ValueExpr: grl.Expr{Kind: grl.ExprLiteral, Lit: boolLit(true)}}},
		},
	}
	r, err := NewResolver(rules, f, cfg, 10)
	if err != nil {
		t.Fatal(err)
	}
	if r.CanProve(eq("Flag.One", boolLit(true))) {
		t.Fatal("expected proof to be cut off by max depth")
	}
}
