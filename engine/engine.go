// Package engine is the top-level façade named in spec §6: the small
// set of entry points (execute, execute_debug, query, can_prove, the
// debug_* administrative calls, function_call) that surrounding layers
// — SQL wrappers, CLIs, the cmd/ruliod demo — actually call, wiring
// together grl/preprocess/rete/forward/backward/debug/limits/collab/
// config behind the closed error envelope.
//
// The teacher has no single façade of this kind — core/location.go's
// Location exposes its operations directly to callers. This package
// plays that same role (one owning struct, exported imperative verbs)
// but collects the multi-package pipeline this spec's richer surface
// area requires.
package engine

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/grl-engine/grlrules/internal/backward"
	"github.com/grl-engine/grlrules/internal/collab"
	"github.com/grl-engine/grlrules/internal/config"
	"github.com/grl-engine/grlrules/internal/debug"
	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/forward"
	"github.com/grl-engine/grlrules/internal/functions"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/limits"
	"github.com/grl-engine/grlrules/internal/logging"
	"github.com/grl-engine/grlrules/internal/preprocess"
	"github.com/grl-engine/grlrules/internal/rete"
	"github.com/grl-engine/grlrules/internal/value"
)

// Engine owns the long-lived, shared state named in spec §5: the
// debug event store (the one structure sessions share) and the
// collaborator handler table, plus configuration. Everything else —
// Facts, the compiled rule set — is scoped to a single call, since
// spec §5 says the knowledge base is owned by a single executor.
type Engine struct {
	Config  config.Config
	Debug   *debug.Store
	Collab  *collab.Table
	janitor *debug.Janitor
}

// New builds an Engine with a fresh debug store and collaborator
// table, ready to serve calls.
func New(cfg config.Config) *Engine {
	logStartup(cfg)
	return &Engine{
		Config: cfg,
		Debug:  debug.NewStore(),
		Collab: collab.NewTable(),
	}
}

// StartJanitor schedules periodic debug-session expiry on schedule
// (standard cron syntax), per §4.8's session TTL.
func (e *Engine) StartJanitor(schedule string) error {
	if e.Config.DebugSessionTTLSeconds <= 0 {
		return nil
	}
	ttl := time.Duration(e.Config.DebugSessionTTLSeconds) * time.Second
	j, err := debug.NewJanitor(e.Debug, schedule, ttl)
	if err != nil {
		return err
	}
	e.janitor = j
	j.Start()
	return nil
}

// StopJanitor halts the background expiry sweep, if one was started.
func (e *Engine) StopJanitor() {
	if e.janitor != nil {
		e.janitor.Stop()
	}
}

// compile validates inputs, parses rule source, and preprocesses
// every rule's conditions/actions, returning a ready-to-run Facts and
// Rule set plus the synthetic fact keys preprocessing injected (see
// stripSyntheticKeys), or a *errors.CodedError on any failure.
func (e *Engine) compile(factsJSON []byte, rulesSrc []byte) (*facts.Facts, []grl.Rule, []string, error) {
	if err := limits.ValidateFacts(factsJSON); err != nil {
		return nil, nil, nil, err
	}
	if err := limits.ValidateRules(rulesSrc); err != nil {
		return nil, nil, nil, err
	}

	f, err := facts.FromJSON(factsJSON)
	if err != nil {
		if facts.IsNonObjectRoot(err) {
			return nil, nil, nil, errors.New(errors.NonObjectJSON, "facts root must be a JSON object: %v", err)
		}
		return nil, nil, nil, errors.New(errors.InvalidJSON, "invalid facts JSON: %v", err)
	}

	src := string(rulesSrc)
	pp, syntheticKeys, err := preprocess.Run(src, f)
	if err != nil {
		return nil, nil, nil, errors.New(errors.InvalidGRL, "preprocessing rule source: %v", err)
	}

	rules, err := grl.Parse(pp)
	if err != nil {
		return nil, nil, nil, errors.New(errors.InvalidGRL, "parsing rule source: %v", err)
	}
	if len(rules) == 0 {
		return nil, nil, nil, errors.New(errors.NoRulesFound, "no rules found in source")
	}

	return f, rules, syntheticKeys, nil
}

// stripSyntheticKeys removes every condition-context synthetic fact
// preprocess.Run injected, so they never leak into the facts JSON
// returned across the external interface (§4.4 step 5's keys are an
// internal evaluation aid, not engine output).
func stripSyntheticKeys(f *facts.Facts, keys []string) {
	for _, k := range keys {
		f.Delete(k)
	}
}

// actionExecutor applies an action's effects against f, resolving
// handler calls via the Engine's collaborator table. Its shape is
// forward.Executor, not rete.ActionExecutor, because it backs the
// §4.6 reference executor: crossCheckReference drives it over an
// independent copy of the starting facts to cross-check the RETE
// network's output, never as the primary execution path.
func (e *Engine) actionExecutor(observer func(event debug.EventKind, payload map[string]interface{})) forward.Executor {
	return func(r grl.Rule, f *facts.Facts) error {
		lookup := rete.Lookup(f.Get)
		for _, action := range r.Actions {
			switch action.Kind {
			case grl.ActionAssign:
				v, err := rete.Eval(action.ValueExpr, lookup)
				if err != nil {
					return fmt.Errorf("engine: evaluating action in rule %q: %w", r.Name, err)
				}
				f.Set(action.TargetPath, v)
				if observer != nil {
					observer(debug.FactModified, map[string]interface{}{"path": action.TargetPath, "rule": r.Name})
				}
			case grl.ActionHandlerCall:
				args := make([]value.Value, len(action.HandlerArgs))
				for i, a := range action.HandlerArgs {
					v, err := rete.Eval(a, lookup)
					if err != nil {
						return fmt.Errorf("engine: evaluating handler argument in rule %q: %w", r.Name, err)
					}
					args[i] = v
				}
				if _, err := e.Collab.Call(action.HandlerName, args); err != nil {
					return fmt.Errorf("engine: handler %q in rule %q: %w", action.HandlerName, r.Name, err)
				}
			}
		}
		if observer != nil {
			observer(debug.RuleFired, map[string]interface{}{"rule": r.Name})
		}
		return nil
	}
}

// reteActionExecutor is the primary execution path's ActionExecutor:
// it applies a rule's actions against the shared Facts (the same
// semantics as actionExecutor) and re-syncs the Network's working
// memory for every fact type an assignment changes, so later matches
// within the same FireAll pass see the update. An assignment that
// leaves a field's value unchanged does not re-sync, so it does not
// re-activate rules.
func (e *Engine) reteActionExecutor(b *reteBridge, observer func(event debug.EventKind, payload map[string]interface{})) rete.ActionExecutor {
	return func(r grl.Rule, handles []rete.Handle) error {
		lookup := rete.Lookup(b.f.Get)
		for _, action := range r.Actions {
			switch action.Kind {
			case grl.ActionAssign:
				v, err := rete.Eval(action.ValueExpr, lookup)
				if err != nil {
					return fmt.Errorf("engine: evaluating action in rule %q: %w", r.Name, err)
				}
				old, had := b.f.Get(action.TargetPath)
				b.f.Set(action.TargetPath, v)
				if !had || !value.Equal(old, v) {
					b.sync(rete.FactTypeOf(action.TargetPath))
				}
				if observer != nil {
					observer(debug.FactModified, map[string]interface{}{"path": action.TargetPath, "rule": r.Name})
				}
			case grl.ActionHandlerCall:
				args := make([]value.Value, len(action.HandlerArgs))
				for i, a := range action.HandlerArgs {
					v, err := rete.Eval(a, lookup)
					if err != nil {
						return fmt.Errorf("engine: evaluating handler argument in rule %q: %w", r.Name, err)
					}
					args[i] = v
				}
				if _, err := e.Collab.Call(action.HandlerName, args); err != nil {
					return fmt.Errorf("engine: handler %q in rule %q: %w", action.HandlerName, r.Name, err)
				}
			}
		}
		if observer != nil {
			observer(debug.RuleFired, map[string]interface{}{"rule": r.Name})
		}
		return nil
	}
}

// fireRules is the primary execution path named in spec §1/§2: compile
// rules into a rete.Network, insert one tuple per fact type found in
// f, and fire to fixpoint. observer, if non-nil, is wired into the
// Network so structural events (AlphaNodeMatched, RuleActivated, ...)
// and action-level events (FactModified, RuleFired) both reach the
// same debug session.
func (e *Engine) fireRules(rules []grl.Rule, f *facts.Facts, maxIter int, observer func(event debug.EventKind, payload map[string]interface{})) ([]rete.FiredRecord, error) {
	net := rete.NewNetwork(nil)
	net.SetObserver(rete.Observer(observer))
	for _, r := range rules {
		if err := net.Compile(r); err != nil {
			return nil, err
		}
	}
	bridge := newReteBridge(net, f)
	return net.FireAll(maxIter, e.reteActionExecutor(bridge, observer))
}

// crossCheckReference runs the quadratic reference executor (§4.6)
// against an independent copy of the starting facts and logs a
// warning if its final output diverges from the RETE network's — the
// correctness comparison §4.6 describes. It never affects the result
// returned to the caller.
func (e *Engine) crossCheckReference(rules []grl.Rule, reference *facts.Facts, maxIter int, primary *facts.Facts) {
	if _, err := forward.Run(rules, reference, e.actionExecutor(nil), maxIter); err != nil {
		logging.Log(logging.WARN, "op", "engine.crossCheckReference", "err", err.Error())
		return
	}
	primaryJSON, err1 := primary.ToJSON()
	referenceJSON, err2 := reference.ToJSON()
	if err1 != nil || err2 != nil {
		return
	}
	if string(primaryJSON) != string(referenceJSON) {
		logging.Log(logging.WARN, "op", "engine.crossCheckReference", "mismatch", true)
	}
}

// wrapExecutionError maps a firing failure to its external error code:
// iteration-cap exhaustion (§4.5 "Termination", §7's Runtime error
// taxonomy) gets its own code rather than the generic fallback.
func wrapExecutionError(err error) error {
	var limitErr *errors.LimitError
	if stderrors.As(err, &limitErr) {
		return errors.New(errors.IterationCapExceeded, "rule execution failed: %v", err)
	}
	return errors.New(errors.ExecutionFailed, "rule execution failed: %v", err)
}

// Execute runs spec §6's `execute`: parse, preprocess, fire all rules
// to fixpoint through the RETE network (§1/§2's primary forward
// engine), and return the final facts as JSON.
func (e *Engine) Execute(factsJSON, rulesSrc []byte) ([]byte, error) {
	f, rules, syntheticKeys, err := e.compile(factsJSON, rulesSrc)
	if err != nil {
		return nil, err
	}

	maxIter := e.Config.MaxFireIterations
	if maxIter <= 0 {
		maxIter = 10000
	}
	if _, err := e.fireRules(rules, f, maxIter, nil); err != nil {
		return nil, wrapExecutionError(err)
	}

	stripSyntheticKeys(f, syntheticKeys)

	out, err := f.ToJSON()
	if err != nil {
		return nil, errors.New(errors.SerializationFailed, "serializing final facts: %v", err)
	}
	return out, nil
}

// ExecuteDebugResult is execute_debug's return shape.
type ExecuteDebugResult struct {
	SessionID  string
	FinalFacts []byte
}

// ExecuteDebug runs §6's `execute_debug`: as Execute, but records every
// RETE lifecycle event to a new debug session, retrievable afterward
// from the Engine's debug store, and cross-checks the result against
// the §4.6 reference executor.
func (e *Engine) ExecuteDebug(factsJSON, rulesSrc []byte) (ExecuteDebugResult, error) {
	f, rules, syntheticKeys, err := e.compile(factsJSON, rulesSrc)
	if err != nil {
		return ExecuteDebugResult{}, err
	}

	var initial map[string]interface{}
	_ = unmarshalLoose(factsJSON, &initial)
	session := e.Debug.Create(string(rulesSrc), len(rules), len(f.Paths()), initial)

	start := time.Now()
	modified := 0
	observer := func(kind debug.EventKind, payload map[string]interface{}) {
		if kind == debug.FactModified {
			modified++
		}
		e.Debug.Append(session, kind, payload)
	}

	maxIter := e.Config.MaxFireIterations
	if maxIter <= 0 {
		maxIter = 10000
	}

	reference := f.Clone()

	fired, err := e.fireRules(rules, f, maxIter, observer)
	if err != nil {
		e.Debug.Fail(session, "EXECUTION_FAILED", err.Error(), nil)
		return ExecuteDebugResult{}, wrapExecutionError(err)
	}

	e.crossCheckReference(rules, reference, maxIter, f)

	stripSyntheticKeys(f, syntheticKeys)

	out, err := f.ToJSON()
	if err != nil {
		e.Debug.Fail(session, "SERIALIZATION_FAILED", err.Error(), nil)
		return ExecuteDebugResult{}, errors.New(errors.SerializationFailed, "serializing final facts: %v", err)
	}

	var finalFacts map[string]interface{}
	_ = unmarshalLoose(out, &finalFacts)
	e.Debug.Complete(session, len(fired), modified, time.Since(start).Nanoseconds(), finalFacts)

	return ExecuteDebugResult{SessionID: session.ID, FinalFacts: out}, nil
}

// QueryResult is query's return shape, per spec §6.
type QueryResult struct {
	Provable       bool
	ProofTrace     *backward.ProofStep
	GoalsExplored  int
	RulesEvaluated int
	DurationMs     float64
}

// Query runs §6's `query`: parse goal as a single comparison
// expression and resolve it backward against facts/rules.
func (e *Engine) Query(factsJSON, rulesSrc []byte, goal string) (QueryResult, error) {
	f, rules, _, err := e.compile(factsJSON, rulesSrc)
	if err != nil {
		return QueryResult{}, err
	}
	goalExpr, err := grl.ParseGoal(goal)
	if err != nil {
		return QueryResult{}, errors.New(errors.InvalidGRL, "parsing goal expression: %v", err)
	}

	cfg := backward.Config{
		MaxDepth:          e.Config.MaxBackwardDepth,
		MaxSolutions:      e.Config.MaxBackwardSolutions,
		EnableMemoization: e.Config.EnableMemoization,
		Strategy:          backward.DepthFirst,
	}
	resolver, err := backward.NewResolver(rules, f, cfg, e.Config.MemoizationCacheSize)
	if err != nil {
		return QueryResult{}, errors.New(errors.ExecutionFailed, "building backward resolver: %v", err)
	}
	res := resolver.Query(goalExpr)
	return QueryResult{
		Provable:       res.Provable,
		ProofTrace:     res.Proof,
		GoalsExplored:  res.Stats.GoalsExplored,
		RulesEvaluated: res.Stats.RulesEvaluated,
		DurationMs:     float64(res.Stats.DurationNanos) / 1e6,
	}, nil
}

// CanProve runs §6's `can_prove`: the lightweight boolean-only form of
// Query that skips trace capture.
func (e *Engine) CanProve(factsJSON, rulesSrc []byte, goal string) (bool, error) {
	f, rules, _, err := e.compile(factsJSON, rulesSrc)
	if err != nil {
		return false, err
	}
	goalExpr, err := grl.ParseGoal(goal)
	if err != nil {
		return false, errors.New(errors.InvalidGRL, "parsing goal expression: %v", err)
	}

	cfg := backward.Config{
		MaxDepth:          e.Config.MaxBackwardDepth,
		MaxSolutions:      e.Config.MaxBackwardSolutions,
		EnableMemoization: e.Config.EnableMemoization,
		Strategy:          backward.DepthFirst,
	}
	resolver, err := backward.NewResolver(rules, f, cfg, e.Config.MemoizationCacheSize)
	if err != nil {
		return false, errors.New(errors.ExecutionFailed, "building backward resolver: %v", err)
	}
	return resolver.CanProve(goalExpr), nil
}

// FunctionCall runs §6's `function_call`: invoke a built-in by name
// for testing/introspection, bypassing rule evaluation entirely.
func (e *Engine) FunctionCall(name string, args []value.Value) (value.Value, error) {
	v, err := functions.Call(name, args)
	if err != nil {
		return value.Null(), errors.New(errors.ExecutionFailed, "calling function %q: %v", name, err)
	}
	return v, nil
}

// Debug administration: thin pass-throughs to the shared Store,
// exposed here so callers never need to reach into internal/debug
// directly.

func (e *Engine) DebugGetSession(id string) (*debug.Session, bool) { return e.Debug.Get(id) }
func (e *Engine) DebugGetEvents(id string) ([]debug.Event, bool)   { return e.Debug.GetEvents(id) }
func (e *Engine) DebugList(offset, limit int) ([]debug.Summary, int) {
	return e.Debug.List(offset, limit)
}
func (e *Engine) DebugDelete(id string) { e.Debug.Delete(id) }
func (e *Engine) DebugClear()           { e.Debug.Clear() }
func (e *Engine) DebugEnable()          { e.Debug.Enable() }
func (e *Engine) DebugDisable()         { e.Debug.Disable() }
func (e *Engine) DebugStatus() bool     { return e.Debug.Enabled() }

func unmarshalLoose(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

// logStartup records engine construction at INFO, mirroring the
// teacher's habit of logging every Location's birth.
func logStartup(cfg config.Config) {
	logging.Log(logging.INFO, "op", "engine.New", "max_fire_iterations", cfg.MaxFireIterations)
}
