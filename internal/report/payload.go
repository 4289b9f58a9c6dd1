// Package report reconciles the evaluation library's native report shape with
// the legacy shape expected by downstream consumers.
//
// Reports are handled as generic JSON objects so that fields this package does
// not know about pass through untouched. Every input is first classified into
// a tagged Payload (raw object, encoded string, or empty) before any field is
// read.
package report

import (
	"encoding/json"
	"strings"
)

// Object is a decoded JSON object.
type Object = map[string]any

// Kind tags the shape of an incoming payload.
type Kind int

// Payload kinds.
const (
	KindEmpty Kind = iota
	KindRaw
	KindEncoded
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindEncoded:
		return "encoded"
	default:
		return "empty"
	}
}

// Payload is the tagged form of a value that may be a live object, a JSON
// string, or nothing usable.
type Payload struct {
	Kind    Kind
	Object  Object
	Encoded string
}

// Classify tags v without decoding it.
func Classify(v any) Payload {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return Payload{Kind: KindEmpty}
		}
		return Payload{Kind: KindRaw, Object: t}
	case string:
		if strings.TrimSpace(t) == "" {
			return Payload{Kind: KindEmpty}
		}
		return Payload{Kind: KindEncoded, Encoded: t}
	case json.RawMessage:
		return Classify(string(t))
	case []byte:
		return Classify(string(t))
	default:
		return Payload{Kind: KindEmpty}
	}
}

// Decode resolves the payload into an object. Encoded payloads are parsed as
// JSON; a parse that yields a JSON string is parsed exactly once more. Any
// failure, or a result that is not an object, yields an empty object.
func (p Payload) Decode() Object {
	switch p.Kind {
	case KindRaw:
		return p.Object
	case KindEncoded:
		return decodeObject(p.Encoded, 1)
	default:
		return Object{}
	}
}

func decodeObject(text string, extraLayers int) Object {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Object{}
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		if extraLayers <= 0 {
			return Object{}
		}
		return decodeObject(t, extraLayers-1)
	default:
		return Object{}
	}
}

// DecodeAny classifies and decodes v in one step.
func DecodeAny(v any) Object {
	return Classify(v).Decode()
}

func present(obj Object, key string) bool {
	_, ok := obj[key]
	return ok
}

func nonNull(obj Object, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// firstNonNull returns the first non-null value among keys, or nil.
func firstNonNull(obj Object, keys ...string) any {
	for _, k := range keys {
		if v, ok := nonNull(obj, k); ok {
			return v
		}
	}
	return nil
}

// NullableString reads a string field, reporting false when it is absent,
// null, or not a string.
func NullableString(obj Object, key string) (string, bool) {
	v, ok := nonNull(obj, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// NullableInt reads an integral numeric field, reporting false when it is
// absent, null, or not a number.
func NullableInt(obj Object, key string) (int, bool) {
	v, ok := nonNull(obj, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func cloneObject(src Object) Object {
	dst := make(Object, len(src)+4)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func asObjects(v any) []Object {
	items, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]Object); ok {
			return typed
		}
		return nil
	}
	out := make([]Object, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok && obj != nil {
			out = append(out, obj)
		}
	}
	return out
}
