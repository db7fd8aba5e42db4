package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/diff"
	"github.com/sells-group/run-harness/internal/normalize"
)

// CheckResult is one invariant verdict. Passed is nil when the run lacks
// the artifacts the check needs.
type CheckResult struct {
	Passed *bool  `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// RunChecks is the metamorphic verdict set for one run.
type RunChecks struct {
	OrderPreservation        CheckResult `json:"order_preservation"`
	NormalizationIdempotence CheckResult `json:"normalization_idempotence"`
	FormatTypeDrift          CheckResult `json:"format_type_drift"`
}

// CheckReport aggregates checks across runs. Overall flags start true
// and flip false on any explicit failure.
type CheckReport struct {
	Runs    map[string]RunChecks `json:"runs"`
	Overall map[string]bool      `json:"overall"`
}

// Check evaluates the metamorphic invariants for every given run path.
func Check(runPaths []string) (*CheckReport, error) {
	report := &CheckReport{
		Runs: map[string]RunChecks{},
		Overall: map[string]bool{
			"order_preservation":        true,
			"normalization_idempotence": true,
			"format_type_drift":         true,
		},
	}

	for _, runPath := range runPaths {
		records, present, err := storedOrderRecords(runPath)
		if err != nil {
			return nil, err
		}

		checks := RunChecks{
			OrderPreservation:        checkOrderPreservation(records, present),
			NormalizationIdempotence: checkNormalizationIdempotence(records, present),
			FormatTypeDrift:          checkFormatTypeDrift(records, present),
		}
		report.Runs[runPath] = checks

		for name, res := range map[string]CheckResult{
			"order_preservation":        checks.OrderPreservation,
			"normalization_idempotence": checks.NormalizationIdempotence,
			"format_type_drift":         checks.FormatTypeDrift,
		} {
			if res.Passed != nil && !*res.Passed {
				report.Overall[name] = false
			}
		}
	}
	return report, nil
}

// storedOrderRecords reads outputs.json preserving stored record order,
// which the keyed loader deliberately discards.
func storedOrderRecords(runPath string) ([]artifact.Record, bool, error) {
	raw, err := os.ReadFile(filepath.Join(runPath, "outputs.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "probe: read outputs.json")
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, eris.Wrap(err, "probe: parse outputs.json")
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		if recs, ok := v["records"].([]any); ok {
			items = recs
		} else {
			items = []any{v}
		}
	}
	records := make([]artifact.Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records, true, nil
}

// checkOrderPreservation verifies record indices appear in ascending
// stored order.
func checkOrderPreservation(records []artifact.Record, present bool) CheckResult {
	if !present {
		return CheckResult{Reason: "no outputs"}
	}
	prev := -1 << 62
	for i, rec := range records {
		idx := i
		if v, ok := rec["query_index"].(float64); ok {
			idx = int(v)
		} else if v, ok := rec["index"].(float64); ok {
			idx = int(v)
		}
		if idx < prev {
			return fail(fmt.Sprintf("record %d has index %d after %d", i, idx, prev))
		}
		prev = idx
	}
	return pass("indices ascending")
}

// checkNormalizationIdempotence verifies normalize(normalize(r)) equals
// normalize(r) for every record.
func checkNormalizationIdempotence(records []artifact.Record, present bool) CheckResult {
	if !present {
		return CheckResult{Reason: "no outputs"}
	}
	for i, rec := range records {
		once := normalize.Normalize(rec)
		twice := normalize.Normalize(once)
		if !diff.Equal(once, twice) {
			return fail(fmt.Sprintf("record %d not idempotent under normalization", i))
		}
	}
	return pass("idempotent")
}

// checkFormatTypeDrift verifies the canonical fields kept their expected
// types: query_index numeric, final_response string.
func checkFormatTypeDrift(records []artifact.Record, present bool) CheckResult {
	if !present {
		return CheckResult{Reason: "no outputs"}
	}
	expected := map[string]string{
		"query_index":    "number",
		"final_response": "string",
	}
	for i, rec := range records {
		for field, want := range expected {
			v, ok := rec[field]
			if !ok {
				continue
			}
			if got := diff.TypeName(v); got != want {
				return fail(fmt.Sprintf("record %d field %s is %s, expected %s", i, field, got, want))
			}
		}
	}
	return pass("no type drift")
}

// WriteCheckReport persists the metamorphic report as indented JSON.
func WriteCheckReport(report *CheckReport, path string) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "probe: marshal check report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "probe: mkdir report dir")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrap(err, "probe: write check report")
	}
	return nil
}

func pass(reason string) CheckResult {
	t := true
	return CheckResult{Passed: &t, Reason: reason}
}

func fail(reason string) CheckResult {
	f := false
	return CheckResult{Passed: &f, Reason: reason}
}
