// Package facts implements the keyed fact store described in spec §3
// and §4.1: dotted-path keys over value.Value, with flattening on
// load from nested JSON and re-nesting on extraction.
//
// The teacher's analogous concept is core.State's fact maps
// (core/state.go), which stay as plain nested map[string]interface{}
// and never flatten — this package's flattening behavior is new,
// required by this spec, but keeps the teacher's "Facts" vocabulary
// and its exclusive-ownership-during-execution model (core/location.go
// holds one State per Location; here one Facts belongs to exactly one
// executor for the run).
package facts

import (
	"sort"
	"strings"

	"github.com/grl-engine/grlrules/internal/value"
)

// Facts is a keyed store mapping dotted paths ("Order.total") to
// Values. The zero value is not usable; use New.
type Facts struct {
	fields map[string]value.Value
	// order records the first-insertion order of every dotted path so
	// Paths and ToJSON can reproduce the shape the facts were built
	// from.
	order []string
}

func New() *Facts {
	return &Facts{fields: make(map[string]value.Value)}
}

// Get fetches the Value at a dotted path.
func (f *Facts) Get(path string) (value.Value, bool) {
	v, ok := f.fields[path]
	return v, ok
}

// Set assigns a Value at a dotted path, creating the key if absent.
func (f *Facts) Set(path string, v value.Value) {
	if _, present := f.fields[path]; !present {
		f.order = append(f.order, path)
	}
	f.fields[path] = v
}

// Has reports whether a dotted path has been assigned.
func (f *Facts) Has(path string) bool {
	_, ok := f.fields[path]
	return ok
}

// Delete removes a dotted path.
func (f *Facts) Delete(path string) {
	if _, present := f.fields[path]; present {
		delete(f.fields, path)
		for i, p := range f.order {
			if p == path {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
}

// Paths returns every assigned dotted path, in insertion order.
func (f *Facts) Paths() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Clone returns a shallow copy. engine.ExecuteDebug uses it to give
// the reference executor its own starting facts, independent of the
// live Facts the RETE network mutates.
func (f *Facts) Clone() *Facts {
	c := New()
	for _, p := range f.order {
		c.Set(p, f.fields[p])
	}
	return c
}

// FromJSON builds a Facts by flattening a JSON object: nested objects
// produce dotted keys; arrays are left intact as a single leaf Value
// (arrays are not flattened, per §4.1). A non-object root is rejected.
func FromJSON(raw []byte) (*Facts, error) {
	root, err := value.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	if root.Kind != value.KindObject {
		return nil, errNonObjectRoot
	}
	f := New()
	flatten(f, "", root)
	return f, nil
}

var errNonObjectRoot = nonObjectRootError{}

type nonObjectRootError struct{}

func (nonObjectRootError) Error() string { return "root JSON value must be an object" }

// IsNonObjectRoot reports whether err is the "root must be an object"
// failure, so callers can map it to the NON_OBJECT_JSON error code
// without depending on a concrete error type.
func IsNonObjectRoot(err error) bool {
	_, ok := err.(nonObjectRootError)
	return ok
}

func flatten(f *Facts, prefix string, v value.Value) {
	if v.Kind != value.KindObject {
		f.Set(prefix, v)
		return
	}
	for _, k := range v.Keys {
		child := v.Obj[k]
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flatten(f, key, child)
	}
}

// ToJSON re-nests every dotted path into a single JSON object,
// splitting each key on "." and creating intermediate objects as
// needed (§4.1). Keys are emitted in the order their top-level
// component was first seen.
func (f *Facts) ToJSON() ([]byte, error) {
	root := rebuild(f)
	return value.ToJSON(root)
}

func rebuild(f *Facts) value.Value {
	root := value.EmptyObject()
	for _, path := range f.order {
		v := f.fields[path]
		parts := strings.Split(path, ".")
		root = setPath(root, parts, v)
	}
	return root
}

func setPath(obj value.Value, parts []string, leaf value.Value) value.Value {
	if len(parts) == 1 {
		return obj.Set(parts[0], leaf)
	}
	head, rest := parts[0], parts[1:]
	child, ok := obj.Get(head)
	if !ok || child.Kind != value.KindObject {
		child = value.EmptyObject()
	}
	child = setPath(child, rest, leaf)
	return obj.Set(head, child)
}

// SortedPaths is a debugging convenience; execution code should use
// Paths (insertion order) instead.
func (f *Facts) SortedPaths() []string {
	out := f.Paths()
	sort.Strings(out)
	return out
}
