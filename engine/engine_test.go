package engine

import (
	"strings"
	"testing"

	"github.com/grl-engine/grlrules/internal/config"
	"github.com/grl-engine/grlrules/internal/value"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default: %v", err)
	}
	return New(*cfg)
}

func TestExecuteAppliesMatchingRule(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Order":{"total":150,"discount":0}}`)
	rulesSrc := []byte(`
rule "D" {
	when
		Order.total > 100
	then
		Order.discount = Order.total * 0.10;
}
`)

	out, err := e.Execute(factsJSON, rulesSrc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `"discount":15`) {
		t.Fatalf("expected discount 15 in output, got %s", out)
	}
}

func TestExecuteNoRuleMatches(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Order":{"total":10,"discount":0}}`)
	rulesSrc := []byte(`
rule "D" {
	when
		Order.total > 100
	then
		Order.discount = 1;
}
`)

	out, err := e.Execute(factsJSON, rulesSrc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `"discount":0`) {
		t.Fatalf("expected discount to stay 0, got %s", out)
	}
}

func TestExecuteRejectsNonObjectFacts(t *testing.T) {
	e := testEngine(t)

	_, err := e.Execute([]byte(`[1,2,3]`), []byte(`rule "R" { when true then X = 1; }`))
	if err == nil {
		t.Fatal("expected an error for non-object facts root")
	}
}

func TestExecuteRejectsEmptyRuleSource(t *testing.T) {
	e := testEngine(t)

	_, err := e.Execute([]byte(`{}`), []byte(``))
	if err == nil {
		t.Fatal("expected an error for empty rule source")
	}
}

func TestExecuteDebugRecordsSession(t *testing.T) {
	e := testEngine(t)
	e.DebugEnable()

	factsJSON := []byte(`{"Order":{"total":150,"discount":0}}`)
	rulesSrc := []byte(`
rule "D" {
	when
		Order.total > 100
	then
		Order.discount = 15;
}
`)

	result, err := e.ExecuteDebug(factsJSON, rulesSrc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("expected a session ID")
	}

	session, ok := e.DebugGetSession(result.SessionID)
	if !ok {
		t.Fatal("expected to find the recorded session")
	}
	if session.RuleSource != string(rulesSrc) {
		t.Fatal("expected recorded rule source to match input")
	}

	events, ok := e.DebugGetEvents(result.SessionID)
	if !ok || len(events) == 0 {
		t.Fatal("expected at least one recorded debug event")
	}
}

func TestQueryProvesGoalViaEstablishingRule(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Customer":{"Age":25}}`)
	rulesSrc := []byte(`
rule "Adult" {
	when
		Customer.Age >= 18
	then
		Customer.IsAdult = true;
}
`)

	res, err := e.Query(factsJSON, rulesSrc, `Customer.IsAdult == true`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Provable {
		t.Fatal("expected goal to be provable")
	}
	if res.ProofTrace == nil {
		t.Fatal("expected a proof trace")
	}
}

func TestQueryFailsWhenNoRuleEstablishesGoal(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Customer":{"Age":10}}`)
	rulesSrc := []byte(`
rule "Adult" {
	when
		Customer.Age >= 18
	then
		Customer.IsAdult = true;
}
`)

	res, err := e.Query(factsJSON, rulesSrc, `Customer.IsAdult == true`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provable {
		t.Fatal("expected goal to be unprovable")
	}
}

func TestCanProveMatchesDirectFact(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Customer":{"IsAdult":true}}`)
	rulesSrc := []byte(`rule "Noop" { when false then Customer.IsAdult = false; }`)

	ok, err := e.CanProve(factsJSON, rulesSrc, `Customer.IsAdult == true`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected direct-fact goal to be provable")
	}
}

func TestFunctionCallInvokesBuiltin(t *testing.T) {
	e := testEngine(t)

	v, err := e.FunctionCall("ToUpper", []value.Value{value.String("abc")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != value.KindString || v.Str != "ABC" {
		t.Fatalf("expected ABC, got %+v", v)
	}
}

func TestFunctionCallUnknownNameErrors(t *testing.T) {
	e := testEngine(t)

	if _, err := e.FunctionCall("NotARealFunction", nil); err == nil {
		t.Fatal("expected an error for an unknown function name")
	}
}

// TestExecuteStripsSyntheticFunctionKey exercises the §8 walkthrough
// scenario: a condition-context built-in call injects a synthetic fact
// (preprocess.Run) that must drive rule evaluation but never appear in
// the facts JSON returned across the external interface.
func TestExecuteStripsSyntheticFunctionKey(t *testing.T) {
	e := testEngine(t)

	factsJSON := []byte(`{"Customer":{"email":"user@example.com","approved":false}}`)
	rulesSrc := []byte(`
rule "V" {
	when
		IsValidEmail(Customer.email)
	then
		Customer.approved = true;
}
`)

	out, err := e.Execute(factsJSON, rulesSrc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), `"approved":true`) {
		t.Fatalf("expected approved:true in output, got %s", out)
	}
	if strings.Contains(string(out), "__func_0_isvalidemail") {
		t.Fatalf("expected synthetic key to be stripped from output, got %s", out)
	}
}

func TestDebugListAndClear(t *testing.T) {
	e := testEngine(t)
	e.DebugEnable()

	factsJSON := []byte(`{"X":1}`)
	rulesSrc := []byte(`rule "R" { when X == 1 then X = 2; }`)
	if _, err := e.ExecuteDebug(factsJSON, rulesSrc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summaries, total := e.DebugList(0, 10)
	if total == 0 || len(summaries) == 0 {
		t.Fatal("expected at least one debug session listed")
	}

	e.DebugClear()
	_, total = e.DebugList(0, 10)
	if total != 0 {
		t.Fatalf("expected no sessions after DebugClear, got %d", total)
	}
}
