package preprocess

import (
	"strings"
	"testing"

	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/value"
)

func TestRunInjectsSyntheticKeyInCondition(t *testing.T) {
	f := facts.New()
	f.Set("Customer.Email", value.String("user@example.com"))
	src := `rule "R" { when IsValidEmail(Customer.Email) == true then Customer.Valid = true; }`

	out, keys, err := Run(src, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "IsValidEmail(") {
		t.Fatalf("expected call site to be rewritten, got %q", out)
	}
	if !strings.Contains(out, "Customer.__func_0_isvalidemail") {
		t.Fatalf("expected synthetic key in output, got %q", out)
	}
	if len(keys) != 1 || keys[0] != "Customer.__func_0_isvalidemail" {
		t.Fatalf("expected synthetic key to be reported, got %v", keys)
	}
	v, ok := f.Get("Customer.__func_0_isvalidemail")
	if !ok || v.Bool != true {
		t.Fatalf("expected synthetic fact set to true, got %+v ok=%v", v, ok)
	}
}

func TestRunSubstitutesLiteralInAction(t *testing.T) {
	f := facts.New()
	src := `rule "R" { when Order.Total > 0 then Order.Rounded = Round(3.7); }`

	out, _, err := Run(src, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Order.Rounded = 4") {
		t.Fatalf("expected literal substitution, got %q", out)
	}
}

func TestRunLeavesUnknownCallsiteUntouched(t *testing.T) {
	f := facts.New()
	src := `rule "R" { when Order.Total > 0 then NotifyShipping(Order.Id); }`

	out, _, err := Run(src, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "NotifyShipping(Order.Id)") {
		t.Fatalf("expected handler call left intact, got %q", out)
	}
}

func TestRunDoesNotRecurseIntoNestedCalls(t *testing.T) {
	f := facts.New()
	f.Set("Order.Total", value.Number(10))
	src := `rule "R" { when Order.Total > 0 then Order.X = Round(Abs(Order.Total)); }`

	// The scanner's non-nested-paren regex only ever sees the
	// innermost call: Abs(Order.Total) is found and substituted with
	// its literal result, but the outer Round(...) text is left
	// exactly as-is in this single pass (no re-scan of the output).
	out, _, err := Run(src, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Round(10)") {
		t.Fatalf("expected only the inner call substituted, got %q", out)
	}
	if strings.Contains(out, "Abs(") {
		t.Fatalf("expected inner call to be rewritten away, got %q", out)
	}
}
