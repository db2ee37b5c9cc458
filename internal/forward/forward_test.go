package forward

import (
	stderrors "errors"
	"testing"

	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/value"
)

func TestRunFiresSalienceOrderAndReachesFixpoint(t *testing.T) {
	rules, err := grl.Parse(`
rule "Low" salience 1 { when Order.Total > 0 then Order.LowSeen = true; }
rule "High" salience 10 { when Order.Total > 0 then Order.HighSeen = true; }
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := facts.New()
	f.Set("Order.Total", value.Number(5))
	f.Set("Order.LowSeen", value.Boolean(false))
	f.Set("Order.HighSeen", value.Boolean(false))

	var order []string
	fired, err := Run(rules, f, func(r grl.Rule, f *facts.Facts) error {
		order = append(order, r.Name)
		for _, a := range r.Actions {
			if a.Kind == grl.ActionAssign {
				f.Set(a.TargetPath, value.Boolean(true))
			}
		}
		return nil
	}, 20)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fired) != 2 || order[0] != "High" || order[1] != "Low" {
		t.Fatalf("expected High then Low, got %v", order)
	}
}

func TestRunHonorsNoLoop(t *testing.T) {
	rules, err := grl.Parse(`
rule "Once" no-loop { when Order.Total > 0 then Order.Count = Order.Count + 1; }
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := facts.New()
	f.Set("Order.Total", value.Number(5))
	f.Set("Order.Count", value.Integer(0))

	count := 0
	fired, err := Run(rules, f, func(r grl.Rule, f *facts.Facts) error {
		count++
		f.Set("Order.Count", value.Integer(int64(count)))
		return nil
	}, 20)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fired) != 1 || count != 1 {
		t.Fatalf("expected exactly one firing under no-loop, got %d (fired=%v)", count, fired)
	}
}

func TestRunReportsIterationCapExceeded(t *testing.T) {
	rules, err := grl.Parse(`
rule "Spin" { when Order.Total > 0 then Order.Total = Order.Total + 1; }
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	f := facts.New()
	f.Set("Order.Total", value.Number(1))

	_, err = Run(rules, f, func(r grl.Rule, f *facts.Facts) error {
		v, _ := f.Get("Order.Total")
		n, _ := v.AsFloat()
		f.Set("Order.Total", value.Number(n+1))
		return nil
	}, 5)
	if err == nil {
		t.Fatal("expected an error when the iteration cap is exceeded with a match still pending")
	}
	var limitErr *errors.LimitError
	if !stderrors.As(err, &limitErr) {
		t.Fatalf("expected a *errors.LimitError, got %T: %v", err, err)
	}
}
