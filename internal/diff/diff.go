// Package diff computes path-tagged structural differences between
// arbitrary JSON-like values (objects, ordered sequences, scalars).
package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// previewLen caps the stringified value stored on type-mismatch entries.
const previewLen = 100

// Kind discriminates the three entry shapes.
type Kind string

const (
	// KindLeaf is an unequal scalar (or scalar-vs-container) pair.
	KindLeaf Kind = "leaf"
	// KindType is a type mismatch; recursion stops at this node.
	KindType Kind = "type"
	// KindLength is a sequence length mismatch.
	KindLength Kind = "length"
)

// Entry describes one difference between two values at a path. The Kind
// field selects which of the remaining fields are meaningful; it is not
// serialized, matching the report format where each entry carries only
// the keys of its shape.
type Entry struct {
	Kind Kind
	Path string

	// KindLeaf
	A any
	B any

	// KindType
	AType    string
	BType    string
	APreview string
	BPreview string

	// KindLength
	LenA int
	LenB int
}

// MarshalJSON serializes only the fields of the entry's shape. A leaf
// entry always carries "a" and "b", including explicit nulls for values
// absent on one side.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindType:
		return json.Marshal(map[string]any{
			"path":      e.Path,
			"a_type":    e.AType,
			"b_type":    e.BType,
			"a_preview": e.APreview,
			"b_preview": e.BPreview,
		})
	case KindLength:
		return json.Marshal(map[string]any{
			"path":  e.Path,
			"len_a": e.LenA,
			"len_b": e.LenB,
		})
	default:
		return json.Marshal(map[string]any{
			"path": e.Path,
			"a":    e.A,
			"b":    e.B,
		})
	}
}

// Diff recursively compares a and b and returns one Entry per observed
// difference. Equal inputs produce no entries. Object keys are iterated
// in sorted order so output is deterministic for deterministic inputs.
func Diff(a, b any, path string) []Entry {
	var out []Entry

	if TypeName(a) != TypeName(b) {
		return []Entry{{
			Kind:     KindType,
			Path:     path,
			AType:    TypeName(a),
			BType:    TypeName(b),
			APreview: preview(a),
			BPreview: preview(b),
		}}
	}

	switch va := a.(type) {
	case map[string]any:
		vb := b.(map[string]any)
		for _, k := range unionKeys(va, vb) {
			ca, cb := va[k], vb[k]
			if Equal(ca, cb) {
				continue
			}
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if isContainer(ca) && isContainer(cb) {
				out = append(out, Diff(ca, cb, childPath)...)
			} else {
				out = append(out, Entry{Kind: KindLeaf, Path: childPath, A: ca, B: cb})
			}
		}
	case []any:
		vb := b.([]any)
		if len(va) != len(vb) {
			out = append(out, Entry{Kind: KindLength, Path: path, LenA: len(va), LenB: len(vb)})
		}
		// Positional comparison up to the shorter length. Elements past it
		// are covered only by the length-mismatch entry above; no alignment
		// or LCS matching is attempted.
		n := min(len(va), len(vb))
		for i := 0; i < n; i++ {
			if !Equal(va[i], vb[i]) {
				out = append(out, Diff(va[i], vb[i], fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	default:
		if !Equal(a, b) {
			out = append(out, Entry{Kind: KindLeaf, Path: path, A: a, B: b})
		}
	}

	return out
}

// TypeName reports the JSON-facing type of v: object, array, string,
// number, bool, or null. All Go numeric kinds collapse to "number" so a
// coerced int64 and a decoded float64 compare as the same type.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, int32, uint, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal reports deep equality under the differ's semantics: numbers
// compare by value regardless of Go kind, objects ignore key order,
// sequences compare positionally.
func Equal(a, b any) bool {
	if TypeName(a) != TypeName(b) {
		return false
	}
	switch va := a.(type) {
	case nil:
		return true
	case map[string]any:
		vb := b.(map[string]any)
		if len(va) != len(vb) {
			return false
		}
		for k, cv := range va {
			ov, ok := vb[k]
			if !ok || !Equal(cv, ov) {
				return false
			}
		}
		return true
	case []any:
		vb := b.([]any)
		if len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	default:
		if TypeName(a) == "number" {
			return asFloat(a) == asFloat(b)
		}
		return a == b
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return math.NaN()
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func preview(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > previewLen {
		return s[:previewLen]
	}
	return s
}
