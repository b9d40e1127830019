// Value normalization and match-key equality.

package tabular

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
)

// normalizeValue collapses numeric Go types to float64 so that values read
// back from JSON compare equal to freshly supplied ones. No cross-kind
// coercion happens: strings, booleans and nil stay distinct.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// valueEqual tests exact equality between two cell values after numeric
// normalization. Lists and other uncomparable values compare by content
// rather than panicking.
func valueEqual(a, b any) bool {
	na := normalizeValue(a)
	nb := normalizeValue(b)
	if na == nil || nb == nil {
		return na == nb
	}
	if !reflect.TypeOf(na).Comparable() || !reflect.TypeOf(nb).Comparable() {
		return reflect.DeepEqual(na, nb)
	}
	return na == nb
}

// sortedKeys returns the record's keys in deterministic order.
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// matchKey encodes an ordered tuple of values into a comparable string.
// JSON encoding keeps types distinct, so "1" and 1 produce different keys.
func matchKey(values []any) (string, error) {
	normalized := make([]any, len(values))
	for i, v := range values {
		normalized[i] = normalizeValue(v)
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
