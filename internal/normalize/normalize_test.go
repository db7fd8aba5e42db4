package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_AllowlistCoercion(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			"total coerced",
			map[string]any{"total": "42"},
			map[string]any{"total": int64(42)},
		},
		{
			"non-numeric left alone",
			map[string]any{"total": "N/A"},
			map[string]any{"total": "N/A"},
		},
		{
			"field outside allowlist stays string",
			map[string]any{"query_index": "5"},
			map[string]any{"query_index": "5"},
		},
		{
			"record_count coerced",
			map[string]any{"record_count": "3"},
			map[string]any{"record_count": int64(3)},
		},
		{
			"signed value coerced",
			map[string]any{"count": "-7"},
			map[string]any{"count": int64(-7)},
		},
		{
			"leading plus coerced",
			map[string]any{"num_records": "+12"},
			map[string]any{"num_records": int64(12)},
		},
		{
			"whitespace disqualifies",
			map[string]any{"count": " 3"},
			map[string]any{"count": " 3"},
		},
		{
			"float string disqualifies",
			map[string]any{"item_count": "3.5"},
			map[string]any{"item_count": "3.5"},
		},
		{
			"already-int value untouched",
			map[string]any{"total": float64(42)},
			map[string]any{"total": float64(42)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Nested(t *testing.T) {
	in := map[string]any{
		"summary": map[string]any{"total": "100", "label": "test"},
	}
	want := map[string]any{
		"summary": map[string]any{"total": int64(100), "label": "test"},
	}
	assert.Equal(t, want, Normalize(in))
}

func TestNormalize_SequenceElementsHaveNoEnclosingKey(t *testing.T) {
	// The allowlist decision uses the immediately enclosing key name;
	// list elements under "count" are not themselves count fields.
	in := map[string]any{"count": []any{"3", "4"}}
	assert.Equal(t, in, Normalize(in))

	// Objects inside lists still coerce their own count fields.
	in2 := map[string]any{
		"items": []any{map[string]any{"count": "3"}},
	}
	want2 := map[string]any{
		"items": []any{map[string]any{"count": int64(3)}},
	}
	assert.Equal(t, want2, Normalize(in2))
}

func TestNormalize_PreservesOrderAndLength(t *testing.T) {
	in := []any{"a", "1", map[string]any{"total": "2"}}
	got := Normalize(in).([]any)
	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, "1", got[1])
	assert.Equal(t, map[string]any{"total": int64(2)}, got[2])
}

func TestNormalize_Idempotent(t *testing.T) {
	values := []any{
		map[string]any{"total": "42"},
		map[string]any{"summary": map[string]any{"count": "7", "note": "x"}},
		[]any{map[string]any{"record_count": "1"}, "2", float64(3)},
		"plain string",
		nil,
		true,
	}
	for _, v := range values {
		once := Normalize(v)
		twice := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{"total": "42"}
	_ = Normalize(in)
	assert.Equal(t, "42", in["total"])
}
