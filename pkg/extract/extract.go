// Package extract locates the record collection inside an arbitrary nested
// API response body.
//
// Extraction is deliberately lenient: a missing key degrades to an empty
// result and a path segment applied to a non-object keeps whatever value the
// walk has reached instead of erroring. Malformed response paths therefore
// produce empty syncs, not failed runs.
package extract

import (
	"strings"

	gojson "github.com/goccy/go-json"
)

// Records walks the dotted path through the response body and returns the
// record collection found there, normalized to a slice.
//
// Normalization rules:
//   - a JSON array is returned as-is
//   - a falsy value (null, "", 0, false, empty object/array) becomes empty
//   - any other scalar or object is wrapped in a one-element slice
func Records(body interface{}, dottedPath string) []interface{} {
	current := body

	for _, key := range strings.Split(dottedPath, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			// Mid-path non-object: keep the partial value. Intentionally
			// mirrors the upstream contract; see DESIGN.md for the caveat.
			break
		}
		val, ok := obj[key]
		if !ok {
			current = []interface{}{}
			continue
		}
		current = val
	}

	if list, ok := current.([]interface{}); ok {
		return list
	}
	if isFalsy(current) {
		return nil
	}
	return []interface{}{current}
}

// Cursor reads a string value at the dotted path, returning "" when the path
// does not resolve to a non-empty string. Used for next-cursor extraction.
func Cursor(body interface{}, dottedPath string) string {
	v, ok := value(body, dottedPath)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool reads a boolean at the dotted path, false when absent or mistyped.
func Bool(body interface{}, dottedPath string) bool {
	v, ok := value(body, dottedPath)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Value performs a strict dotted-path lookup and reports whether the
// full path resolved.
func Value(body interface{}, dottedPath string) (interface{}, bool) {
	return value(body, dottedPath)
}

// value performs a strict dotted-path lookup: any missing key or non-object
// segment fails the lookup. Cursor fields want precision, not leniency.
func value(body interface{}, dottedPath string) (interface{}, bool) {
	current := body
	for _, key := range strings.Split(dottedPath, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// isFalsy reports whether a decoded JSON value counts as empty for the
// purposes of record coercion.
func isFalsy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case gojson.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
