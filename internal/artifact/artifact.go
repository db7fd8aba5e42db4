// Package artifact locates and loads run directories: output records,
// trace events, and manifests, across the on-disk layouts the pipeline
// has produced over time.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one logical output unit of the ingestion pipeline.
type Record = map[string]any

// TraceEvent is one recorded decision point (decision_point, params,
// outcome, optional timestamp). Kept as a raw mapping so trace files
// diff the same way records do.
type TraceEvent = map[string]any

// reservedFiles are run-directory JSON files that are never records.
var reservedFiles = map[string]struct{}{
	"config.json":   {},
	"index.json":    {},
	"manifest.json": {},
}

// LoadRecords loads a run's output records keyed by record index.
//
// Resolution order: an outputs.json file (array of records, object with
// a "records" array, or a bare single record at index 0), else every
// *.json in the run directory except config/index/manifest, one record
// per file in sorted filename order. A record's own query_index (or
// index) field overrides its positional index.
func LoadRecords(runPath string) (map[int]Record, error) {
	outputs := filepath.Join(runPath, "outputs.json")
	if _, err := os.Stat(outputs); err == nil {
		raw, err := os.ReadFile(outputs)
		if err != nil {
			return nil, eris.Wrap(err, "artifact: read outputs.json")
		}
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, eris.Wrap(err, "artifact: parse outputs.json")
		}
		return keyRecords(recordList(data)), nil
	}

	entries, err := os.ReadDir(runPath)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read run dir %s", runPath)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if _, reserved := reservedFiles[e.Name()]; reserved {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []Record
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(runPath, name))
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: read %s", name)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, eris.Wrapf(err, "artifact: parse %s", name)
		}
		records = append(records, rec)
	}
	return keyRecords(records), nil
}

// recordList extracts the record slice from the decoded outputs.json.
func recordList(data any) []Record {
	switch v := data.(type) {
	case []any:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	case map[string]any:
		if recs, ok := v["records"].([]any); ok {
			out := make([]Record, 0, len(recs))
			for _, item := range recs {
				if rec, ok := item.(map[string]any); ok {
					out = append(out, rec)
				}
			}
			return out
		}
		// Some other object: a single record at index 0.
		return []Record{v}
	}
	return nil
}

// keyRecords indexes records positionally, letting an explicit
// query_index or index field win when present.
func keyRecords(records []Record) map[int]Record {
	keyed := make(map[int]Record, len(records))
	for i, rec := range records {
		idx := i
		if v, ok := indexField(rec, "query_index"); ok {
			idx = v
		} else if v, ok := indexField(rec, "index"); ok {
			idx = v
		}
		keyed[idx] = rec
	}
	return keyed
}

// indexField reads an integer-valued record field. JSON decoding gives
// float64; already-coerced int64 is accepted too. Strings are not: a
// string query_index stays a positional override candidate only after
// normalization, which never touches it.
func indexField(rec Record, name string) (int, bool) {
	switch v := rec[name].(type) {
	case float64:
		return int(v), true
	case int64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// LoadTraces loads a run's trace events keyed by trace key. A single
// traces.json object (key -> event) is preferred; otherwise each file in
// the traces/ subdirectory becomes one event keyed by filename stem.
func LoadTraces(runPath string) (map[string]TraceEvent, error) {
	traces := make(map[string]TraceEvent)

	single := filepath.Join(runPath, "traces.json")
	if _, err := os.Stat(single); err == nil {
		raw, err := os.ReadFile(single)
		if err != nil {
			return nil, eris.Wrap(err, "artifact: read traces.json")
		}
		if err := json.Unmarshal(raw, &traces); err != nil {
			return nil, eris.Wrap(err, "artifact: parse traces.json")
		}
		return traces, nil
	}

	dir := filepath.Join(runPath, "traces")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return traces, nil
		}
		return nil, eris.Wrapf(err, "artifact: read traces dir %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: read trace %s", e.Name())
		}
		var ev TraceEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, eris.Wrapf(err, "artifact: parse trace %s", e.Name())
		}
		traces[strings.TrimSuffix(e.Name(), ".json")] = ev
	}
	return traces, nil
}

// Naming identifies the trace filename generation a run was written with.
type Naming string

const (
	// NamingNone means the run has no trace files.
	NamingNone Naming = "none"
	// NamingV1 is trace_<index>.json.
	NamingV1 Naming = "v1"
	// NamingV2 is trace_<index>_<decision_point>.json.
	NamingV2 Naming = "v2"
)

// InferTraceNaming inspects a traces directory and reports which naming
// generation wrote it. Runs from different generations use incompatible
// keys, so cross-generation comparisons must carry an explicit warning
// rather than silently mismatching.
func InferTraceNaming(tracesDir string) Naming {
	entries, err := os.ReadDir(tracesDir)
	if err != nil {
		return NamingNone
	}
	found := NamingNone
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		if len(strings.Split(stem, "_")) >= 3 {
			return NamingV2
		}
		found = NamingV1
	}
	return found
}
