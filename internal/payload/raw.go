package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Raw is the decoded request body before classification.
type Raw map[string]any

// Decode parses a request body into a Raw document.
func Decode(body []byte) (Raw, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedInput)
	}
	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %s", ErrMalformedInput, kindOf(doc))
	}
	return Raw(obj), nil
}

// has reports whether a dotted path resolves to a non-null value.
func (r Raw) has(path string) bool {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return false
		}
	}
	return true
}

// decoder reads typed values out of loosely shaped JSON objects. The first schema
// violation sticks and every later read becomes a no-op.
type decoder struct {
	err *SchemaValidationError
}

func (d *decoder) fail(path, reason string) {
	if d.err == nil {
		d.err = &SchemaValidationError{Path: path, Reason: reason}
	}
}

func (d *decoder) lookup(obj map[string]any, key string) (any, bool) {
	if d.err != nil || obj == nil {
		return nil, false
	}
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (d *decoder) str(obj map[string]any, key, path string) string {
	v, ok := d.lookup(obj, key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(join(path, key), "expected string, got "+kindOf(v))
		return ""
	}
	return strings.TrimSpace(s)
}

func (d *decoder) requiredStr(obj map[string]any, key, path string) string {
	s := d.str(obj, key, path)
	if d.err == nil && s == "" {
		d.fail(join(path, key), "required")
	}
	return s
}

func (d *decoder) float(obj map[string]any, key, path string) *float64 {
	v, ok := d.lookup(obj, key)
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		d.fail(join(path, key), "expected number, got "+kindOf(v))
		return nil
	}
	return &f
}

func (d *decoder) requiredFloat(obj map[string]any, key, path string) float64 {
	f := d.float(obj, key, path)
	if f == nil {
		if d.err == nil {
			d.fail(join(path, key), "required")
		}
		return 0
	}
	return *f
}

func (d *decoder) probability(obj map[string]any, key, path string) *float64 {
	f := d.float(obj, key, path)
	if f != nil && (*f < 0 || *f > 1) {
		d.fail(join(path, key), "must be within [0,1]")
		return nil
	}
	return f
}

func (d *decoder) integer(obj map[string]any, key, path string) *int {
	f := d.float(obj, key, path)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) {
		d.fail(join(path, key), "expected integer")
		return nil
	}
	n := int(*f)
	return &n
}

func (d *decoder) boolean(obj map[string]any, key, path string) *bool {
	v, ok := d.lookup(obj, key)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(join(path, key), "expected boolean, got "+kindOf(v))
		return nil
	}
	return &b
}

func (d *decoder) flag(obj map[string]any, key, path string) bool {
	b := d.boolean(obj, key, path)
	return b != nil && *b
}

func (d *decoder) object(obj map[string]any, key, path string) map[string]any {
	v, ok := d.lookup(obj, key)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(join(path, key), "expected object, got "+kindOf(v))
		return nil
	}
	return m
}

func (d *decoder) list(obj map[string]any, key, path string) []any {
	v, ok := d.lookup(obj, key)
	if !ok {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		d.fail(join(path, key), "expected array, got "+kindOf(v))
		return nil
	}
	return l
}

func (d *decoder) objects(obj map[string]any, key, path string) []map[string]any {
	items := d.list(obj, key, path)
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			d.fail(index(join(path, key), i), "expected object, got "+kindOf(item))
			return nil
		}
		out = append(out, m)
	}
	return out
}

func (d *decoder) stringList(obj map[string]any, key, path string) []string {
	items := d.list(obj, key, path)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			d.fail(index(join(path, key), i), "expected string, got "+kindOf(item))
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (d *decoder) floatMap(obj map[string]any, key, path string) map[string]float64 {
	m := d.object(obj, key, path)
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		f, ok := v.(float64)
		if !ok {
			d.fail(join(join(path, key), k), "expected number, got "+kindOf(v))
			return nil
		}
		out[k] = f
	}
	return out
}

// extensions collects the keys of obj not listed in known.
func extensions(obj map[string]any, known map[string]struct{}) map[string]any {
	var out map[string]any
	for k, v := range obj {
		if _, ok := known[k]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
