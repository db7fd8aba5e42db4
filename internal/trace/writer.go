// Package trace writes run-time evidence: a trace.jsonl event log plus
// per-decision trace files under traces/. The writer is owned by the run
// that opened it and released with Close; there is no process-wide
// output handle.
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/artifact"
)

// Writer emits trace events for a single run directory.
type Writer struct {
	runDir string
	naming artifact.Naming
	out    *os.File
	now    func() time.Time
}

// New opens a trace writer for runDir, creating runDir/trace.jsonl.
// naming selects the per-decision filename generation.
func New(runDir string, naming artifact.Naming) (*Writer, error) {
	if naming == artifact.NamingNone {
		naming = artifact.NamingV2
	}
	f, err := os.Create(filepath.Join(runDir, "trace.jsonl"))
	if err != nil {
		return nil, eris.Wrap(err, "trace: create trace.jsonl")
	}
	return &Writer{runDir: runDir, naming: naming, out: f, now: time.Now}, nil
}

// Emit appends one structured event line to trace.jsonl. source names
// where the event came from (e.g. "ingest.validate").
func (w *Writer) Emit(event, source string, fields map[string]any) error {
	record := map[string]any{
		"ts":     w.now().Format(time.RFC3339Nano),
		"event":  event,
		"source": source,
	}
	for k, v := range fields {
		record[k] = v
	}
	line, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "trace: marshal event")
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "trace: write event")
	}
	return nil
}

// EmitDecision writes one decision-point trace file under traces/,
// named per the writer's naming generation: trace_<index>.json (v1) or
// trace_<index>_<decision_point>.json (v2).
func (w *Writer) EmitDecision(index int, decisionPoint string, params map[string]any, outcome string) error {
	dir := filepath.Join(w.runDir, "traces")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "trace: mkdir traces")
	}

	name := fmt.Sprintf("trace_%d.json", index)
	if w.naming == artifact.NamingV2 {
		name = fmt.Sprintf("trace_%d_%s.json", index, decisionPoint)
	}

	event := artifact.TraceEvent{
		"decision_point": decisionPoint,
		"params":         params,
		"outcome":        outcome,
	}
	raw, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return eris.Wrap(err, "trace: marshal decision")
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		return eris.Wrap(err, "trace: write decision")
	}
	return nil
}

// Close flushes and releases the event log handle.
func (w *Writer) Close() error {
	return eris.Wrap(w.out.Close(), "trace: close")
}
