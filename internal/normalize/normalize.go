// Package normalize canonicalizes record values ahead of comparison.
//
// The only rewrite performed is numeric-string coercion: string values
// sitting directly under a count-like field name are converted to int64
// when they parse as base-10 integers. Everything else passes through
// structurally unchanged.
package normalize

import "strconv"

// countFields is the allowlist of field names whose string values are
// coerced. The decision uses the immediately enclosing key, not the path.
var countFields = map[string]struct{}{
	"count":        {},
	"record_count": {},
	"total":        {},
	"num_records":  {},
	"item_count":   {},
}

// Normalize returns a copy of v with allowlisted numeric strings coerced
// to int64. Pure and idempotent: coercing an already-numeric value is a
// no-op, so Normalize(Normalize(v)) == Normalize(v).
func Normalize(v any) any {
	return normalizeValue(v, "")
}

// NormalizeRecord normalizes every field of a record mapping.
func NormalizeRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = normalizeValue(v, k)
	}
	return out
}

func normalizeValue(v any, key string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeValue(child, k)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			// Sequence elements have no enclosing field name.
			out[i] = normalizeValue(child, "")
		}
		return out
	case string:
		if _, ok := countFields[key]; !ok {
			return val
		}
		if n, ok := parseInt(val); ok {
			return n
		}
		return val
	default:
		return v
	}
}

// parseInt accepts optionally signed base-10 integers only. Leading or
// trailing whitespace, decimal points, and exponents all disqualify.
func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
