package ingest

import (
	"fmt"
	"strconv"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/diff"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	// KindSchema is a missing/empty required field or a wrong type.
	KindSchema ErrorKind = "schema"
	// KindSemantic is technically valid but logically wrong data.
	KindSemantic ErrorKind = "semantic"
)

// ValidationError is a tagged validation failure carrying the offending
// record's index.
type ValidationError struct {
	Kind        ErrorKind
	Message     string
	RecordIndex int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s error at record %d: %s", e.Kind, e.RecordIndex, e.Message)
}

func schemaErr(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindSchema, Message: fmt.Sprintf(format, args...), RecordIndex: index}
}

func semanticErr(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindSemantic, Message: fmt.Sprintf(format, args...), RecordIndex: index}
}

// Rules specifies what Validate enforces.
type Rules struct {
	// Required fields must be present and non-empty.
	Required []string
	// Types maps field name to an expected JSON-facing type name
	// (string, number, bool, object, array). "int" additionally accepts
	// numeric strings, mirroring the CSV type gap.
	Types map[string]string
	// MinCount, when set, requires any "count" field to be numeric and
	// at least this value.
	MinCount *int
}

// Validate checks records against the rules, returning the first failure
// as a *ValidationError.
func Validate(records []artifact.Record, rules Rules) error {
	for i, rec := range records {
		for _, field := range rules.Required {
			v, ok := rec[field]
			if !ok {
				return schemaErr(i, "missing required field: %s", field)
			}
			if v == nil || v == "" {
				return schemaErr(i, "required field %s is empty", field)
			}
		}

		for field, expected := range rules.Types {
			v, ok := rec[field]
			if !ok {
				continue
			}
			if expected == "int" {
				if !isIntish(v) {
					return schemaErr(i, "%s must be int, got %s", field, diff.TypeName(v))
				}
				continue
			}
			if diff.TypeName(v) != expected {
				return schemaErr(i, "%s must be %s, got %s", field, expected, diff.TypeName(v))
			}
		}

		if rules.MinCount != nil {
			v, ok := rec["count"]
			if !ok {
				continue
			}
			n, ok := asInt(v)
			if !ok {
				return schemaErr(i, "count field is not numeric: %v", v)
			}
			if n < *rules.MinCount {
				return semanticErr(i, "count must be >= %d, got %d", *rules.MinCount, n)
			}
		}
	}
	return nil
}

func isIntish(v any) bool {
	_, ok := asInt(v)
	return ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
