// Package probe introspects run folders: record schemas, type
// distributions, ordering signatures, and metamorphic invariants.
package probe

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/diff"
)

// Summary describes one run folder.
type Summary struct {
	Run               string              `json:"run"`
	RecordCount       int                 `json:"record_count"`
	FieldTypes        map[string][]string `json:"field_types"`
	OrderingSignature string              `json:"ordering_signature"`
	TraceCount        int                 `json:"trace_count"`
	TraceNaming       artifact.Naming     `json:"trace_naming"`
}

// Summarize loads a run and reports its schema, ordering, and trace
// inventory.
func Summarize(runPath string) (*Summary, error) {
	records, err := artifact.LoadRecords(runPath)
	if err != nil {
		return nil, eris.Wrap(err, "probe: load records")
	}
	traces, err := artifact.LoadTraces(runPath)
	if err != nil {
		return nil, eris.Wrap(err, "probe: load traces")
	}

	ordered := orderedRecords(records)
	s := &Summary{
		Run:               filepath.Base(runPath),
		RecordCount:       len(ordered),
		FieldTypes:        fieldTypes(ordered),
		OrderingSignature: orderingSignature(records),
		TraceCount:        len(traces),
		TraceNaming:       artifact.InferTraceNaming(filepath.Join(runPath, "traces")),
	}
	return s, nil
}

// fieldTypes collects the set of observed JSON types per field, sorted
// for stable output.
func fieldTypes(records []artifact.Record) map[string][]string {
	seen := map[string]map[string]struct{}{}
	for _, rec := range records {
		for k, v := range rec {
			if seen[k] == nil {
				seen[k] = map[string]struct{}{}
			}
			seen[k][diff.TypeName(v)] = struct{}{}
		}
	}
	out := make(map[string][]string, len(seen))
	for k, types := range seen {
		names := make([]string, 0, len(types))
		for t := range types {
			names = append(names, t)
		}
		sort.Strings(names)
		out[k] = names
	}
	return out
}

// orderingSignature joins record indices in stored order, exposing any
// out-of-order run at a glance.
func orderingSignature(records map[int]artifact.Record) string {
	if len(records) == 0 {
		return "(empty)"
	}
	indices := make([]int, 0, len(records))
	for idx := range records {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

func orderedRecords(records map[int]artifact.Record) []artifact.Record {
	indices := make([]int, 0, len(records))
	for idx := range records {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]artifact.Record, len(indices))
	for i, idx := range indices {
		out[i] = records[idx]
	}
	return out
}

// TypeProbe reports per-field type distributions and how many values are
// numeric-looking strings (the usual CSV/JSON type gap signal).
type TypeProbe struct {
	FieldTypes         map[string]map[string]int `json:"field_types"`
	FieldTotal         map[string]int            `json:"field_total"`
	NumericStringCount map[string]int            `json:"numeric_string_count"`
}

// ProbeTypes walks records and tallies type observations per field.
func ProbeTypes(records []artifact.Record) *TypeProbe {
	p := &TypeProbe{
		FieldTypes:         map[string]map[string]int{},
		FieldTotal:         map[string]int{},
		NumericStringCount: map[string]int{},
	}
	for _, rec := range records {
		for k, v := range rec {
			if p.FieldTypes[k] == nil {
				p.FieldTypes[k] = map[string]int{}
			}
			p.FieldTypes[k][diff.TypeName(v)]++
			p.FieldTotal[k]++
			if s, ok := v.(string); ok && looksNumeric(s) {
				p.NumericStringCount[k]++
			}
		}
	}
	return p
}

func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
