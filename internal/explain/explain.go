// Package explain compares two runs' artifacts and judges whether trace
// evidence explains an observed output difference.
package explain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/diff"
	"github.com/sells-group/run-harness/internal/normalize"
)

// Judgment labels whether traces account for an output difference.
type Judgment string

const (
	JudgmentNoOutputDiff       Judgment = "no_output_diff"
	JudgmentTracesDoNotExplain Judgment = "traces_do_not_explain"
	JudgmentTracesMayExplain   Judgment = "traces_may_explain"
	JudgmentUncertain          Judgment = "uncertain"
)

// Options tunes a comparison.
type Options struct {
	// MaxDiffs truncates each diff list in the report when > 0. The
	// judgment is always computed from the untruncated lists.
	MaxDiffs int
}

// NormalizationNote reports how normalization changed the output diff
// surface: paths masked by coercion, and paths that only appear after it.
type NormalizationNote struct {
	RemovedPaths []string `json:"removed_paths"`
	AddedPaths   []string `json:"added_paths"`
}

// Report is the full result of comparing two runs.
type Report struct {
	RunA string `json:"run_a"`
	RunB string `json:"run_b"`

	TraceNamingWarning string `json:"trace_naming_warning,omitempty"`

	RawOutputDiffs        []diff.Entry `json:"raw_output_diffs"`
	NormalizedOutputDiffs []diff.Entry `json:"normalized_output_diffs"`
	TraceDiffs            []diff.Entry `json:"trace_diffs"`

	RawOutputDiffsTotal      int  `json:"raw_output_diffs_total,omitempty"`
	RawOutputDiffsTruncated  bool `json:"raw_output_diffs_truncated,omitempty"`
	NormalizedDiffsTotal     int  `json:"normalized_output_diffs_total,omitempty"`
	NormalizedDiffsTruncated bool `json:"normalized_output_diffs_truncated,omitempty"`
	TraceDiffsTotal          int  `json:"trace_diffs_total,omitempty"`
	TraceDiffsTruncated      bool `json:"trace_diffs_truncated,omitempty"`

	Judgment Judgment `json:"judgment"`
	Reasons  []string `json:"reasons"`

	NormalizationNote *NormalizationNote `json:"normalization_note,omitempty"`
}

// Compare loads both runs' records and traces, diffs them raw,
// normalized, and trace-wise, and applies the judgment policy. It has no
// side effects; callers persist the report if they want it kept.
func Compare(runA, runB string, opts Options) (*Report, error) {
	recsA, err := artifact.LoadRecords(runA)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: load records %s", runA)
	}
	recsB, err := artifact.LoadRecords(runB)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: load records %s", runB)
	}
	tracesA, err := artifact.LoadTraces(runA)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: load traces %s", runA)
	}
	tracesB, err := artifact.LoadTraces(runB)
	if err != nil {
		return nil, eris.Wrapf(err, "explain: load traces %s", runB)
	}

	report := &Report{RunA: runA, RunB: runB}

	namingA := artifact.InferTraceNaming(filepath.Join(runA, "traces"))
	namingB := artifact.InferTraceNaming(filepath.Join(runB, "traces"))
	if namingA != artifact.NamingNone && namingB != artifact.NamingNone && namingA != namingB {
		report.TraceNamingWarning = fmt.Sprintf(
			"trace naming versions differ (%s vs %s); trace keys may not align, comparison is best-effort",
			namingA, namingB,
		)
		zap.L().Warn("explain: trace naming mismatch",
			zap.String("run_a", runA), zap.String("naming_a", string(namingA)),
			zap.String("run_b", runB), zap.String("naming_b", string(namingB)),
		)
	}

	rawDiffs := diffRecords(recsA, recsB, func(r artifact.Record) artifact.Record { return r })
	normDiffs := diffRecords(recsA, recsB, normalize.NormalizeRecord)
	traceDiffs := diffTraces(tracesA, tracesB)

	report.Judgment, report.Reasons = judge(rawDiffs, traceDiffs)
	report.NormalizationNote = normalizationNote(rawDiffs, normDiffs)

	report.RawOutputDiffs, report.RawOutputDiffsTotal, report.RawOutputDiffsTruncated = truncate(rawDiffs, opts.MaxDiffs)
	report.NormalizedOutputDiffs, report.NormalizedDiffsTotal, report.NormalizedDiffsTruncated = truncate(normDiffs, opts.MaxDiffs)
	report.TraceDiffs, report.TraceDiffsTotal, report.TraceDiffsTruncated = truncate(traceDiffs, opts.MaxDiffs)

	return report, nil
}

// diffRecords diffs the union of record indices in ascending order. A
// record absent on one side is compared against an empty mapping.
func diffRecords(a, b map[int]artifact.Record, prep func(artifact.Record) artifact.Record) []diff.Entry {
	seen := make(map[int]struct{}, len(a)+len(b))
	for idx := range a {
		seen[idx] = struct{}{}
	}
	for idx := range b {
		seen[idx] = struct{}{}
	}
	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var out []diff.Entry
	for _, idx := range indices {
		ra, rb := a[idx], b[idx]
		if ra == nil {
			ra = artifact.Record{}
		}
		if rb == nil {
			rb = artifact.Record{}
		}
		out = append(out, diff.Diff(prep(ra), prep(rb), fmt.Sprintf("query_%d", idx))...)
	}
	return out
}

// diffTraces diffs the union of trace keys in sorted order. A trace
// absent on one side is compared against an empty mapping.
func diffTraces(a, b map[string]artifact.TraceEvent) []diff.Entry {
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

	var out []diff.Entry
	for _, k := range keys {
		ta, tb := a[k], b[k]
		if ta == nil {
			ta = artifact.TraceEvent{}
		}
		if tb == nil {
			tb = artifact.TraceEvent{}
		}
		out = append(out, diff.Diff(ta, tb, "trace_"+k)...)
	}
	return out
}

// judge applies the explainability policy, first match wins.
func judge(outputDiffs, traceDiffs []diff.Entry) (Judgment, []string) {
	switch {
	case len(outputDiffs) == 0:
		return JudgmentNoOutputDiff, []string{
			"Outputs are identical; no explanation needed",
		}
	case len(traceDiffs) == 0:
		return JudgmentTracesDoNotExplain, []string{
			"Outputs differ but traces are identical or missing; no trace-level explanation for output diff",
		}
	}

	outputPaths := pathSet(outputDiffs)
	tracePaths := pathSet(traceDiffs)
	overlap := false
	for p := range tracePaths {
		if _, ok := outputPaths[p]; ok {
			overlap = true
			break
		}
	}
	if overlap || mentionsDecision(traceDiffs) {
		return JudgmentTracesMayExplain, []string{
			"Trace diffs overlap with or precede output diffs",
		}
	}
	return JudgmentTracesDoNotExplain, []string{
		"Trace diffs exist but do not obviously explain output diffs (no decision_point overlap)",
	}
}

// mentionsDecision reports whether any trace-diff entry's serialized form
// contains "decision" -- a heuristic proxy for a decision-point change.
func mentionsDecision(entries []diff.Entry) bool {
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if strings.Contains(string(raw), "decision") {
			return true
		}
	}
	return false
}

// normalizationNote compares the raw and normalized diff path sets.
// Returns nil when normalization changed nothing.
func normalizationNote(rawDiffs, normDiffs []diff.Entry) *NormalizationNote {
	rawPaths := pathSet(rawDiffs)
	normPaths := pathSet(normDiffs)

	note := &NormalizationNote{RemovedPaths: []string{}, AddedPaths: []string{}}
	for p := range rawPaths {
		if _, ok := normPaths[p]; !ok {
			note.RemovedPaths = append(note.RemovedPaths, p)
		}
	}
	for p := range normPaths {
		if _, ok := rawPaths[p]; !ok {
			note.AddedPaths = append(note.AddedPaths, p)
		}
	}
	if len(note.RemovedPaths) == 0 && len(note.AddedPaths) == 0 {
		return nil
	}
	sort.Strings(note.RemovedPaths)
	sort.Strings(note.AddedPaths)
	return note
}

func pathSet(entries []diff.Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Path] = struct{}{}
	}
	return set
}

// truncate caps a diff list at max entries. Total and the truncated flag
// are only reported when truncation actually dropped entries.
func truncate(entries []diff.Entry, max int) ([]diff.Entry, int, bool) {
	if entries == nil {
		entries = []diff.Entry{}
	}
	if max <= 0 || len(entries) <= max {
		return entries, 0, false
	}
	return entries[:max], len(entries), true
}

// WriteReport persists a report as indented JSON at dir/explainability_report.json.
func WriteReport(report *Report, dir string) (string, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "explain: marshal report")
	}
	path := filepath.Join(dir, "explainability_report.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", eris.Wrap(err, "explain: write report")
	}
	return path, nil
}
