package rete

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grl-engine/grlrules/internal/debug"
	"github.com/grl-engine/grlrules/internal/errors"
	"github.com/grl-engine/grlrules/internal/grl"
	"github.com/grl-engine/grlrules/internal/logging"
	"github.com/grl-engine/grlrules/internal/value"
)

// Handle is a process-unique monotonic fact identifier, stable until
// retraction (§3's Fact Entry invariant).
type Handle uint64

type factEntry struct {
	handle   Handle
	factType string
	fields   map[string]value.Value
}

// workingMemory holds every live fact entry, indexed by handle.
// Multiset semantics (the same (type,data) pair may yield multiple
// handles) fall out naturally: nothing here dedups by content.
type workingMemory struct {
	next    Handle
	entries map[Handle]*factEntry
}

func newWorkingMemory() *workingMemory {
	return &workingMemory{entries: map[Handle]*factEntry{}}
}

// alphaNode holds every fact entry of one fact type that has passed
// its predicate, keyed by (fact_type, predicate) per §"Compilation".
// Single-fact-type rules get a real, filtering predicate; a fact type
// that only ever appears alongside others in a join accepts
// everything at the alpha stage and leaves the actual join predicate
// to be evaluated by the owning rule's full condition expression (see
// Network.recompute) — see DESIGN.md for why this tradeoff is safe at
// this engine's typical single-instance-per-type fact cardinality.
type alphaNode struct {
	key       string
	factType  string
	predicate func(fields map[string]value.Value) bool
	memory    map[Handle]map[string]value.Value
	rules     []*compiledRule
}

type compiledRule struct {
	rule       grl.Rule
	factTypes  []string
	alphas     []*alphaNode
	firedOnce  map[string]bool // no-loop: tuple key -> already fired
}

func (c *compiledRule) tupleFired(key string) bool { return c.firedOnce[key] }

func (c *compiledRule) markFired(key string) {
	if c.firedOnce == nil {
		c.firedOnce = map[string]bool{}
	}
	c.firedOnce[key] = true
}

// Observer receives RETE-internal lifecycle events (§4.8) as the
// network processes inserts, modifies, retracts, evaluations, and
// agenda changes. A nil Observer (the default) makes every emission
// site below a no-op, so an undebugged run pays nothing for it.
type Observer func(kind debug.EventKind, payload map[string]interface{})

// Network is the RETE-style engine instance for one knowledge base:
// shared alpha-node memory across all compiled rules, one agenda, and
// the working memory of fact entries currently inserted.
type Network struct {
	mu               sync.Mutex
	wm               *workingMemory
	alphaByKey       map[string]*alphaNode
	rules            map[string]*compiledRule
	agenda           *agenda
	logger           logging.Logger
	lockedUntilReset map[string]bool // lock-on-active: rules blocked for the remainder of this FireAll
	observer         Observer
}

// NewNetwork returns an empty network ready to Compile rules into.
func NewNetwork(logger logging.Logger) *Network {
	if logger == nil {
		logger = logging.NoopLogger{}
	}
	return &Network{
		wm:               newWorkingMemory(),
		alphaByKey:       map[string]*alphaNode{},
		rules:            map[string]*compiledRule{},
		agenda:           newAgenda(),
		logger:           logger,
		lockedUntilReset: map[string]bool{},
	}
}

// SetObserver installs (or clears, with nil) the structural event
// callback the engine layer uses to feed a debug session.
func (n *Network) SetObserver(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observer = o
}

func (n *Network) emit(kind debug.EventKind, payload map[string]interface{}) {
	if n.observer == nil {
		return
	}
	n.observer(kind, payload)
}

func handleIDs(hs []Handle) []uint64 {
	out := make([]uint64, len(hs))
	for i, h := range hs {
		out[i] = uint64(h)
	}
	return out
}

// Compile loads a rule IR into the network, creating or reusing alpha
// nodes per referenced fact type. Returns an error if the rule
// references no fact paths at all (conditions must name at least one
// fact).
func (n *Network) Compile(r grl.Rule) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	factTypes := ReferencedFactTypes(r.Conditions)
	if len(factTypes) == 0 {
		return fmt.Errorf("rete: rule %q has no fact-referencing conditions", r.Name)
	}
	cr := &compiledRule{rule: r, factTypes: factTypes}

	singleType := len(factTypes) == 1
	for _, ft := range factTypes {
		var key string
		var pred func(map[string]value.Value) bool
		if singleType {
			conditions := r.Conditions
			key = "single|" + ft + "|" + r.Name
			pred = func(fields map[string]value.Value) bool {
				lookup := singleTypeLookup(ft, fields)
				v, err := Eval(conditions, lookup)
				if err != nil {
					return false
				}
				return v.Truthy()
			}
		} else {
			key = "joinpass|" + ft
			pred = func(map[string]value.Value) bool { return true }
		}
		an, ok := n.alphaByKey[key]
		if !ok {
			an = &alphaNode{key: key, factType: ft, predicate: pred, memory: map[Handle]map[string]value.Value{}}
			n.alphaByKey[key] = an
		}
		an.rules = append(an.rules, cr)
		cr.alphas = append(cr.alphas, an)
	}
	n.rules[r.Name] = cr

	// A newly compiled rule may already be satisfiable by facts
	// inserted earlier; evaluate it immediately against current alpha
	// memories populated by membership checks below.
	for _, an := range cr.alphas {
		for h, fields := range n.wm.snapshotByType(an.factType) {
			if an.predicate(fields) {
				an.memory[h] = fields
			}
		}
	}
	n.recompute(cr)
	return nil
}

func (wm *workingMemory) snapshotByType(factType string) map[Handle]map[string]value.Value {
	out := map[Handle]map[string]value.Value{}
	for h, e := range wm.entries {
		if e.factType == factType {
			out[h] = e.fields
		}
	}
	return out
}

func singleTypeLookup(factType string, fields map[string]value.Value) Lookup {
	return func(path string) (value.Value, bool) {
		if factTypeOf(path) != factType {
			return value.Null(), false
		}
		v, ok := fields[fieldOf(path)]
		return v, ok
	}
}

func multiTypeLookup(byType map[string]map[string]value.Value) Lookup {
	return func(path string) (value.Value, bool) {
		ft := factTypeOf(path)
		fields, ok := byType[ft]
		if !ok {
			return value.Null(), false
		}
		v, ok := fields[fieldOf(path)]
		return v, ok
	}
}

// Insert creates a new fact entry and propagates it through every
// alpha node of its type, per §3's insert operation.
func (n *Network) Insert(factType string, fields map[string]value.Value) Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.insertLocked(factType, fields)
}

func (n *Network) insertLocked(factType string, fields map[string]value.Value) Handle {
	n.wm.next++
	h := n.wm.next
	n.wm.entries[h] = &factEntry{handle: h, factType: factType, fields: fields}
	n.emit(debug.FactInserted, map[string]interface{}{"fact_type": factType, "handle": uint64(h)})
	n.propagateInsert(factType, h, fields)
	return h
}

func (n *Network) propagateInsert(factType string, h Handle, fields map[string]value.Value) {
	touched := map[*compiledRule]bool{}
	for _, an := range n.alphaByKey {
		if an.factType != factType {
			continue
		}
		if an.predicate(fields) {
			an.memory[h] = fields
			n.emit(debug.AlphaNodeMatched, map[string]interface{}{"alpha_key": an.key, "fact_type": factType, "handle": uint64(h)})
			for _, cr := range an.rules {
				touched[cr] = true
			}
		}
	}
	for cr := range touched {
		n.recompute(cr)
	}
}

// Retract removes a fact entry, cascading through alpha memories and
// cancelling any agenda activation referencing it (§3's retract,
// invariant 4).
func (n *Network) Retract(h Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retractLocked(h)
}

func (n *Network) retractLocked(h Handle) {
	e, ok := n.wm.entries[h]
	if !ok {
		return
	}
	delete(n.wm.entries, h)
	n.emit(debug.FactRetracted, map[string]interface{}{"fact_type": e.factType, "handle": uint64(h)})
	touched := map[*compiledRule]bool{}
	for _, an := range n.alphaByKey {
		if an.factType != e.factType {
			continue
		}
		if _, present := an.memory[h]; present {
			delete(an.memory, h)
			for _, cr := range an.rules {
				touched[cr] = true
			}
		}
	}
	n.agenda.RemoveByHandle(h)
	for cr := range touched {
		n.recompute(cr)
	}
}

// Modify updates a fact entry's fields in place. Semantically
// equivalent to retract-then-reinsert per §3, but this implementation
// keeps the same handle rather than minting a new one, since callers
// (the action executor) depend on handle stability across a rule's
// own assignments.
func (n *Network) Modify(h Handle, fields map[string]value.Value) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.wm.entries[h]
	if !ok {
		return fmt.Errorf("rete: modify: unknown handle %d", h)
	}
	factType := e.factType
	e.fields = fields
	touched := map[*compiledRule]bool{}
	for _, an := range n.alphaByKey {
		if an.factType != factType {
			continue
		}
		passes := an.predicate(fields)
		_, was := an.memory[h]
		switch {
		case passes:
			an.memory[h] = fields
			n.emit(debug.AlphaNodeMatched, map[string]interface{}{"alpha_key": an.key, "fact_type": factType, "handle": uint64(h)})
			for _, cr := range an.rules {
				touched[cr] = true
			}
		case was:
			delete(an.memory, h)
			for _, cr := range an.rules {
				touched[cr] = true
			}
		}
	}
	n.agenda.RemoveByHandle(h)
	for cr := range touched {
		n.recompute(cr)
	}
	return nil
}

// recompute re-derives the full set of matched handle tuples for a
// rule from its alpha nodes' current memories and reconciles the
// agenda against it: newly-satisfied tuples are added (unless
// no-loop already fired them), no-longer-satisfied ones are
// cancelled.
func (n *Network) recompute(cr *compiledRule) {
	combos := crossProduct(cr)
	wanted := map[string][]Handle{}
	for _, combo := range combos {
		byType := map[string]map[string]value.Value{}
		handles := make([]Handle, 0, len(combo))
		for ft, h := range combo {
			an := n.alphaFor(cr, ft)
			byType[ft] = an.memory[h]
			handles = append(handles, h)
		}
		lookup := multiTypeLookup(byType)
		v, err := Eval(cr.rule.Conditions, lookup)
		matched := err == nil && v.Truthy()
		n.emit(debug.RuleEvaluated, map[string]interface{}{"rule": cr.rule.Name, "handles": handleIDs(handles), "matched": matched})
		if !matched {
			continue
		}
		sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
		if len(handles) > 1 {
			n.emit(debug.BetaNodeJoined, map[string]interface{}{"rule": cr.rule.Name, "handles": handleIDs(handles)})
		}
		wanted[handleTupleKey(handles)] = handles
	}

	existing := n.agenda.ActivationsForRule(cr.rule.Name)
	existingKeys := map[string]bool{}
	for _, handles := range existing {
		existingKeys[handleTupleKey(handles)] = true
		if _, stillWanted := wanted[handleTupleKey(handles)]; !stillWanted {
			n.agenda.Cancel(cr.rule.Name, handles)
			n.emit(debug.RuleDeactivated, map[string]interface{}{"rule": cr.rule.Name, "handles": handleIDs(handles)})
		}
	}
	for key, handles := range wanted {
		if cr.rule.Control.NoLoop && cr.tupleFired(key) {
			continue
		}
		if n.lockedUntilReset[cr.rule.Name] {
			continue
		}
		salience := cr.rule.Salience
		n.agenda.Add(cr.rule.Name, handles, salience)
		if !existingKeys[key] {
			n.emit(debug.RuleActivated, map[string]interface{}{"rule": cr.rule.Name, "handles": handleIDs(handles)})
		}
	}
}

func (n *Network) alphaFor(cr *compiledRule, factType string) *alphaNode {
	for _, an := range cr.alphas {
		if an.factType == factType {
			return an
		}
	}
	return nil
}

// crossProduct enumerates every combination of one handle per fact
// type the rule references. At this engine's typical cardinality
// (zero or one live instance per fact type) this is at most a single
// combination; it degrades gracefully to a full cartesian product if
// a caller inserts multiple instances of the same type.
func crossProduct(cr *compiledRule) []map[string]Handle {
	combos := []map[string]Handle{{}}
	for _, an := range cr.alphas {
		var next []map[string]Handle
		if len(an.memory) == 0 {
			return nil
		}
		for _, base := range combos {
			for h := range an.memory {
				combo := make(map[string]Handle, len(base)+1)
				for k, v := range base {
					combo[k] = v
				}
				combo[an.factType] = h
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

// FiredRecord describes one rule firing returned by FireAll, enough
// for the engine layer to synthesize RuleFired debug events.
type FiredRecord struct {
	RuleName string
	Handles  []Handle
}

// ActionExecutor applies a rule's actions given the handles that
// matched it; supplied by the engine layer, which alone knows how to
// translate an Action into a Facts mutation or a collaborator call.
type ActionExecutor func(rule grl.Rule, handles []Handle) error

// FireAll drains the agenda under its salience/ordinal ordering until
// empty or maxIterations is reached (§3's safety cap), applying each
// activation's rule via exec. Returns the firing sequence in order.
//
// Reaching maxIterations while an activation is still pending is a
// non-terminating rule set, not a success (§4.5 "Termination"):
// FireAll reports that as a *errors.LimitError rather than silently
// returning a truncated result.
func (n *Network) FireAll(maxIterations int, exec ActionExecutor) ([]FiredRecord, error) {
	n.mu.Lock()
	n.lockedUntilReset = map[string]bool{}
	n.mu.Unlock()

	var fired []FiredRecord
	for i := 0; i < maxIterations; i++ {
		n.mu.Lock()
		n.emit(debug.AgendaStateSnapshot, map[string]interface{}{"pending": n.agenda.Len()})
		act, ok := n.agenda.Pop()
		if !ok {
			n.mu.Unlock()
			return fired, nil
		}
		cr := n.rules[act.RuleName]
		// Mark no-loop/lock-on-active state before running the action:
		// the action may itself insert/modify facts that trigger a
		// recompute of this same rule before FireAll regains the lock,
		// and that recompute must already see this match as fired.
		if cr.rule.Control.NoLoop {
			cr.markFired(handleTupleKey(act.Handles))
		}
		if cr.rule.Control.LockOnActive {
			n.lockedUntilReset[cr.rule.Name] = true
			n.agenda.RemoveActivationsForRule(cr.rule.Name)
		}
		n.mu.Unlock()

		timer := logging.NewTimer("rete.fire." + act.RuleName)
		if err := exec(cr.rule, act.Handles); err != nil {
			timer.Stop()
			return fired, fmt.Errorf("rete: firing %q: %w", act.RuleName, err)
		}
		timer.Stop()

		fired = append(fired, FiredRecord{RuleName: act.RuleName, Handles: act.Handles})
	}

	n.mu.Lock()
	pending := n.agenda.Len() > 0
	n.mu.Unlock()
	if pending {
		return fired, errors.NewLimitError("rete: iteration cap (%d) exceeded with activations still pending", maxIterations)
	}
	return fired, nil
}

// Reset clears no-loop firing history and lock-on-active state,
// starting a fresh execution session over the same compiled rules.
func (n *Network) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, cr := range n.rules {
		cr.firedOnce = nil
	}
	n.lockedUntilReset = map[string]bool{}
}
