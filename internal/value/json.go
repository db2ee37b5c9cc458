package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// formatNumber renders a Number the way §9 design note (c) calls for:
// a whole-valued float keeps a visible decimal point ("4.0"), so a
// JSON consumer can distinguish a Number(4) that came out of Round
// from an Integer(4) produced directly from a fact path. Integer
// values never go through this path.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FromJSON decodes raw JSON bytes into a Value, preserving object key
// order the way encoding/json's Decoder reports tokens — this is what
// lets facts_to_json(json_to_facts(x)) round-trip key order per §8
// invariant 1.
func FromJSON(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if extra, err := dec.Token(); err != io.EOF {
		if err == nil {
			return Value{}, fmt.Errorf("trailing JSON token %v", extra)
		}
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var arr []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(arr), nil
		case '{':
			obj := EmptyObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("non-string object key %v", keyTok)
				}
				field, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj = obj.Set(key, field)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return obj, nil
		}
	}
	return Value{}, fmt.Errorf("unrecognized JSON token %v (%T)", tok, tok)
}

// ToJSON renders a Value back to JSON bytes, preserving Object key
// order.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBoolean:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInteger:
		fmt.Fprintf(buf, "%d", v.Int)
	case KindNumber:
		buf.WriteString(formatNumber(v.Float))
	case KindString, KindExpression:
		s := v.Str
		if v.Kind == KindExpression {
			s = v.ExprSrc
		}
		bs, err := json.Marshal(s)
		if err != nil {
			return err
		}
		buf.Write(bs)
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, key := range v.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeValue(buf, v.Obj[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode Value of kind %v", v.Kind)
	}
	return nil
}
