// Package ingest parses, validates, and persists tabular records
// (JSON/CSV) through the run pipeline.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/artifact"
)

// ParseJSON parses raw JSON into records. A single object becomes a
// one-record slice.
func ParseJSON(raw string) ([]artifact.Record, error) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, eris.Wrap(err, "ingest: parse json")
	}
	switch v := data.(type) {
	case map[string]any:
		return []artifact.Record{v}, nil
	case []any:
		records := make([]artifact.Record, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, eris.Errorf("ingest: json element %d is not an object", i)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, eris.New("ingest: json input is neither object nor array")
	}
}

// ParseCSV parses raw CSV into records. The first row supplies field
// names, lowercased; every value stays a string.
func ParseCSV(raw string) ([]artifact.Record, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: parse csv")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(h)
	}

	records := make([]artifact.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(artifact.Record, len(headers))
		for i, h := range headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
