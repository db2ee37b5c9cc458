package functions

import (
	"strings"

	"github.com/grl-engine/grlrules/internal/value"
)

func init() {
	register("JsonParse", jsonParse)
	register("JsonStringify", jsonStringify)
	register("JsonGet", jsonGet)
	register("JsonSet", jsonSet)
}

func jsonParse(args []value.Value) (value.Value, error) {
	if err := requireArgs("JsonParse", args, 1); err != nil {
		return value.Null(), err
	}
	s, err := asString("JsonParse", args, 0)
	if err != nil {
		return value.Null(), err
	}
	v, err := value.FromJSON([]byte(s))
	if err != nil {
		return value.Null(), argErr("JsonParse", 0, "invalid JSON: %v", err)
	}
	return v, nil
}

func jsonStringify(args []value.Value) (value.Value, error) {
	if err := requireArgs("JsonStringify", args, 1); err != nil {
		return value.Null(), err
	}
	bs, err := value.ToJSON(args[0])
	if err != nil {
		return value.Null(), argErr("JsonStringify", 0, "cannot stringify: %v", err)
	}
	return value.String(string(bs)), nil
}

// jsonGet walks a dotted path through an Object Value, per spec
// §4.3's "dotted paths".
func jsonGet(args []value.Value) (value.Value, error) {
	if err := requireArgs("JsonGet", args, 2); err != nil {
		return value.Null(), err
	}
	path, err := asString("JsonGet", args, 1)
	if err != nil {
		return value.Null(), err
	}
	cur := args[0]
	for _, key := range strings.Split(path, ".") {
		field, ok := cur.Get(key)
		if !ok {
			return value.Null(), argErr("JsonGet", 1, "key %q not found", key)
		}
		cur = field
	}
	return cur, nil
}

// jsonSet returns a new Value with the field at the dotted path set,
// per spec §4.3's "JsonSet returns new value" — the argument Value is
// never mutated in place.
func jsonSet(args []value.Value) (value.Value, error) {
	if err := requireArgs("JsonSet", args, 3); err != nil {
		return value.Null(), err
	}
	path, err := asString("JsonSet", args, 1)
	if err != nil {
		return value.Null(), err
	}
	return setPath(args[0], strings.Split(path, "."), args[2])
}

func setPath(obj value.Value, parts []string, leaf value.Value) (value.Value, error) {
	if obj.Kind != value.KindObject {
		obj = value.EmptyObject()
	} else {
		fields := make(map[string]value.Value, len(obj.Obj))
		for k, v := range obj.Obj {
			fields[k] = v
		}
		obj = value.NewObject(obj.Keys, fields)
	}
	if len(parts) == 1 {
		return obj.Set(parts[0], leaf), nil
	}
	head, rest := parts[0], parts[1:]
	child, _ := obj.Get(head)
	child, err := setPath(child, rest, leaf)
	if err != nil {
		return value.Null(), err
	}
	return obj.Set(head, child), nil
}
