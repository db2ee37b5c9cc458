package engine

import (
	"github.com/grl-engine/grlrules/internal/facts"
	"github.com/grl-engine/grlrules/internal/rete"
	"github.com/grl-engine/grlrules/internal/value"
)

// reteBridge translates between facts.Facts's single dotted-path JSON
// tree and rete.Network's discrete, typed (fact_type, fields) working
// memory (spec §3/§4.5). Each top-level key of a Facts document
// becomes one inserted tuple; an action that mutates a field re-syncs
// that tuple's fields so RETE's alpha/beta memories stay current for
// the rest of the firing pass, per §4.5's modify semantics.
type reteBridge struct {
	net     *rete.Network
	f       *facts.Facts
	handles map[string]rete.Handle
}

// newReteBridge inserts one tuple per fact type currently present in
// f and records its handle.
func newReteBridge(net *rete.Network, f *facts.Facts) *reteBridge {
	b := &reteBridge{net: net, f: f, handles: map[string]rete.Handle{}}
	for _, ft := range b.factTypes() {
		b.handles[ft] = net.Insert(ft, b.fieldsFor(ft))
	}
	return b
}

// factTypes returns the distinct fact-type prefixes currently present
// in f, in first-appearance order.
func (b *reteBridge) factTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range b.f.Paths() {
		t := rete.FactTypeOf(p)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (b *reteBridge) fieldsFor(factType string) map[string]value.Value {
	fields := map[string]value.Value{}
	for _, p := range b.f.Paths() {
		if rete.FactTypeOf(p) != factType {
			continue
		}
		v, _ := b.f.Get(p)
		fields[rete.FieldOf(p)] = v
	}
	return fields
}

// sync re-derives factType's full field map from the live Facts and
// pushes it into the Network, minting a handle on first use — an
// action may assign into a fact type that never appeared in the
// input facts.
func (b *reteBridge) sync(factType string) {
	fields := b.fieldsFor(factType)
	h, ok := b.handles[factType]
	if !ok {
		b.handles[factType] = b.net.Insert(factType, fields)
		return
	}
	_ = b.net.Modify(h, fields)
}
