package evaluate

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Snapshot serializes an in-process report value to JSON the same way the
// in-page stringifier does: every pointer, map, and slice is visited at most
// once, repeated identities are omitted (which also breaks cycles), and
// function or channel values are dropped. Omitted array elements become null.
func Snapshot(v any) (string, error) {
	w := &walker{seen: make(map[identity]struct{})}
	tree, ok := w.walk(reflect.ValueOf(v))
	if !ok {
		return "", nil
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type walker struct {
	seen map[identity]struct{}
}

// visit records id and reports whether it was new.
func (w *walker) visit(id identity) bool {
	if _, dup := w.seen[id]; dup {
		return false
	}
	w.seen[id] = struct{}{}
	return true
}

// walk converts v into plain JSON-encodable values. The boolean is false when
// v must be omitted from its parent.
func (w *walker) walk(v reflect.Value) (any, bool) {
	if !v.IsValid() {
		return nil, true
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, false
	case reflect.Interface:
		if v.IsNil() {
			return nil, true
		}
		return w.walk(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return nil, true
		}
		if !w.visit(identity{ptr: v.Pointer(), typ: v.Type()}) {
			return nil, false
		}
		if raw, ok := marshalJSON(v); ok {
			return raw, true
		}
		return w.walk(v.Elem())
	}

	if raw, ok := marshalJSON(v); ok {
		return raw, true
	}

	switch v.Kind() {
	case reflect.Map:
		return w.walkMap(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil, true
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), true
		}
		if v.Len() > 0 && !w.visit(identity{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}) {
			return nil, false
		}
		return w.walkList(v), true
	case reflect.Array:
		return w.walkList(v), true
	case reflect.Struct:
		return w.walkStruct(v), true
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, true
		}
		return v.Interface(), true
	default:
		return v.Interface(), true
	}
}

func (w *walker) walkMap(v reflect.Value) (any, bool) {
	if v.IsNil() {
		return nil, true
	}
	if !w.visit(identity{ptr: v.Pointer(), typ: v.Type()}) {
		return nil, false
	}
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		child, ok := w.walk(iter.Value())
		if !ok {
			continue
		}
		out[mapKey(iter.Key())] = child
	}
	return out, true
}

func (w *walker) walkList(v reflect.Value) []any {
	out := make([]any, v.Len())
	for i := range out {
		if child, ok := w.walk(v.Index(i)); ok {
			out[i] = child
		}
	}
	return out
}

// walkStruct follows encoding/json field rules. Fields of an untagged
// embedded struct are promoted unless the outer struct already names them.
func (w *walker) walkStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	var promoted map[string]any
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}
		fv := v.Field(i)
		if inner, ok := embeddedStruct(field, fv); ok {
			if !inner.IsValid() {
				continue
			}
			if promoted == nil {
				promoted = make(map[string]any)
			}
			for k, child := range w.walkStruct(inner) {
				if _, dup := promoted[k]; !dup {
					promoted[k] = child
				}
			}
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		child, ok := w.walk(fv)
		if !ok {
			continue
		}
		out[name] = child
	}
	for k, child := range promoted {
		if _, ok := out[k]; !ok {
			out[k] = child
		}
	}
	return out
}

// embeddedStruct returns the struct behind an untagged anonymous field. A nil
// embedded pointer contributes nothing.
func embeddedStruct(field reflect.StructField, fv reflect.Value) (reflect.Value, bool) {
	if !field.Anonymous {
		return reflect.Value{}, false
	}
	if name, _, _ := strings.Cut(field.Tag.Get("json"), ","); name != "" {
		return reflect.Value{}, false
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return reflect.Value{}, fv.Type().Elem().Kind() == reflect.Struct
		}
		fv = fv.Elem()
	}
	if fv.Kind() != reflect.Struct || fv.Type().Implements(marshalerType) {
		return reflect.Value{}, false
	}
	return fv, true
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, strings.Contains(opts, "omitempty"), false
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func marshalJSON(v reflect.Value) (json.RawMessage, bool) {
	if !v.CanInterface() || !v.Type().Implements(marshalerType) {
		return nil, false
	}
	m, ok := v.Interface().(json.Marshaler)
	if !ok {
		return nil, false
	}
	raw, err := m.MarshalJSON()
	if err != nil || !json.Valid(raw) {
		return nil, false
	}
	return json.RawMessage(raw), true
}
