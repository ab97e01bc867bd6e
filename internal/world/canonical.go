package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for content-addressed hashing.
// This is the ONLY serialization that may feed identity computation.
//
// Canonical form:
//  1. Object keys sorted bytewise
//  2. Strings NFC normalized, no HTML escaping
//  3. Floats in shortest round-trip form (strconv 'g', 64-bit), so equal
//     values always serialize to equal bytes
//  4. No null (returns error)
//
// Supported inputs: string, bool, int, int64, float64, []any,
// map[string]any, map[string]float64, Delta, Change, and *State.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return canonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case float64:
		return canonicalFloat(val)
	case []any:
		return canonicalArray(val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return canonicalArray(arr)
	case map[string]any:
		return canonicalObject(val)
	case map[string]float64:
		obj := make(map[string]any, len(val))
		for k, f := range val {
			obj[k] = f
		}
		return canonicalObject(obj)
	case Change:
		return canonicalObject(map[string]any{"old": val.Old, "new": val.New})
	case Delta:
		obj := make(map[string]any, len(val))
		for k, c := range val {
			obj[k] = c
		}
		return canonicalObject(obj)
	case *State:
		return canonicalObject(map[string]any{
			"turn":      val.Turn,
			"overlays":  floatMapToAny(val.Overlays),
			"variables": floatMapToAny(val.Variables),
		})
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func floatMapToAny(m map[string]float64) map[string]any {
	obj := make(map[string]any, len(m))
	for k, f := range m {
		obj[k] = f
	}
	return obj
}

// canonicalFloat formats a float deterministically. NaN and infinities
// have no JSON representation and are rejected.
func canonicalFloat(f float64) ([]byte, error) {
	if f != f {
		return nil, fmt.Errorf("NaN is forbidden in canonical JSON")
	}
	if f > 1.7976931348623157e308 || f < -1.7976931348623157e308 {
		return nil, fmt.Errorf("infinity is forbidden in canonical JSON")
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// canonicalString normalizes to NFC and encodes without HTML escaping.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder appends a trailing newline.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

func canonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func canonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
