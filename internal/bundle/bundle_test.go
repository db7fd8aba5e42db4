package bundle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQuestionBank_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.jsonl")
	content := `{"id":"q1","prompt":"what changed","expected_answer":"record_count","tags":["diff"]}

{"id":"q2","expected_label":"UNDERDETERMINED","artifact":"runs/a/outputs.json"}
{"id":"q3","underdetermined":true}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	questions, err := LoadQuestionBank(path)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	assert.Equal(t, "q1", questions[0].ID)
	assert.Equal(t, []string{"diff"}, questions[0].Tags)
	assert.False(t, questions[0].IsUnderdetermined())
	assert.True(t, questions[1].IsUnderdetermined())
	assert.True(t, questions[2].IsUnderdetermined())
}

func TestLoadQuestionBank_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	content := `- id: q1
  prompt: what changed
  expected_answer: record_count
- id: q2
  underdetermined: true
  evidence_pointers:
    - runs/a/manifest.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	questions, err := LoadQuestionBank(path)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "record_count", questions[0].ExpectedAnswer)
	assert.Equal(t, []string{"runs/a/manifest.json"}, questions[1].EvidencePointers)
}

func TestLoadQuestionBank_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"q1"}`+"\n"+`{"id":`), 0o644))

	_, err := LoadQuestionBank(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestFilter_Apply(t *testing.T) {
	questions := []Question{
		{ID: "q1", Tags: []string{"diff"}},
		{ID: "q2", Tags: []string{"scoring"}},
		{ID: "q3", Tags: []string{"diff", "scoring"}},
		{ID: "q4"},
	}

	t.Run("ids win over tag", func(t *testing.T) {
		got := Filter{IDs: []string{"q2", " q4"}, Tag: "diff"}.Apply(questions)
		require.Len(t, got, 2)
		assert.Equal(t, "q2", got[0].ID)
		assert.Equal(t, "q4", got[1].ID)
	})

	t.Run("tag", func(t *testing.T) {
		got := Filter{Tag: "diff"}.Apply(questions)
		require.Len(t, got, 2)
		assert.Equal(t, "q1", got[0].ID)
		assert.Equal(t, "q3", got[1].ID)
	})

	t.Run("subset keeps bank order", func(t *testing.T) {
		got := Filter{Subset: 2}.Apply(questions)
		require.Len(t, got, 2)
		assert.Equal(t, "q1", got[0].ID)
		assert.Equal(t, "q2", got[1].ID)
	})

	t.Run("subset larger than set", func(t *testing.T) {
		got := Filter{Subset: 10}.Apply(questions)
		assert.Len(t, got, 4)
	})

	t.Run("empty filter keeps all", func(t *testing.T) {
		assert.Len(t, Filter{}.Apply(questions), 4)
	})
}

func TestResolveArtifacts(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "runs", "run_a")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "outputs.json"), []byte(`[]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "explainability_report.json"), []byte(`{}`), 0o644))

	questions := []Question{
		{ID: "q1", Artifact: "runs/run_a/outputs.json"},
		{ID: "q2", Artifact: "runs/run_a/missing.json"},
		{ID: "q3", Artifact: "explainability_report.json"},
		{ID: "q4", Artifact: "manifest.json"},
		{ID: "q5", Artifact: "something else"},
	}

	resolved := ResolveArtifacts(root, questions)

	assert.Equal(t, []string{filepath.Join(runDir, "outputs.json")}, resolved["q1"])
	// Missing subpath falls back to the run directory.
	assert.Equal(t, []string{runDir}, resolved["q2"])
	assert.Equal(t, []string{filepath.Join(runDir, "explainability_report.json")}, resolved["q3"])
	assert.Equal(t, []string{filepath.Join(runDir, "manifest.json")}, resolved["q4"])
	assert.Empty(t, resolved["q5"])
}

func TestCreateAndLoad(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "runs", "run_a")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "outputs.json"), []byte(`[{"v":1}]`), 0o644))

	questions := []Question{
		{ID: "q1", Artifact: "runs/run_a/outputs.json"},
		{ID: "q2", Underdetermined: true},
	}
	opts := CreateOptions{
		Name:          "smoke",
		OutDir:        filepath.Join(root, "eval_bundles"),
		CopyArtifacts: true,
		Now:           time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC),
	}

	dir, err := Create(root, questions, opts)
	require.NoError(t, err)
	assert.Equal(t, "20260829_103000_smoke", filepath.Base(dir))

	for _, name := range []string{"bundle.json", "instructions.txt", "artifact_paths.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// Artifact copied under artifacts/ at its repo-relative path.
	copied := filepath.Join(dir, "artifacts", "runs", "run_a", "outputs.json")
	raw, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"v":1}]`, string(raw))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "20260829_103000_smoke", loaded.Name)
	require.Len(t, loaded.Questions, 2)
	assert.True(t, loaded.Questions[1].IsUnderdetermined())
	assert.Equal(t, questions[0].ID, loaded.Questions[0].ID)
	assert.NotEmpty(t, loaded.Constraints["allowed_evidence"])
	assert.Len(t, loaded.ResolvedArtifacts["q1"], 1)
	assert.Empty(t, loaded.ResolvedArtifacts["q2"])
}

func TestCreate_NoCopy(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "runs", "run_a")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "outputs.json"), []byte(`[]`), 0o644))

	dir, err := Create(root, []Question{{ID: "q1", Artifact: "runs/run_a/outputs.json"}}, CreateOptions{
		OutDir: filepath.Join(root, "out"),
		Now:    time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "20260829_103000_default", filepath.Base(dir))

	// artifacts/ exists but stays empty without copying.
	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
