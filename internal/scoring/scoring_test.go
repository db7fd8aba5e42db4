package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/run-harness/internal/bundle"
)

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "yes it did", NormalizeAnswer("  Yes   it\tdid  "))
	assert.Equal(t, "", NormalizeAnswer("   "))
}

func TestAnswersMatch(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"exact after normalization", "Traces_May_Explain", "traces_may_explain", true},
		{"short answer whole word", "no", "The answer is no.", true},
		{"short answer not inside longer word", "no", "normalization changed the count", false},
		{"yes inside sentence", "yes", "Yes, run B differs", true},
		{"false is not gated as short", "false", "the flag was falsey", true},
		{"substring containment", "record_count", "the record_count field changed", true},
		{"containment reversed", "the record_count field changed", "record_count", true},
		{"punctuation stripped", "traces may explain", "traces, may; explain", true},
		{"empty actual", "yes", "", false},
		{"empty expected", "", "something", false},
		{"both empty", "", "", true},
		{"plain mismatch", "3", "4", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnswersMatch(tt.expected, tt.actual))
		})
	}
}

func TestSaidCannotInfer(t *testing.T) {
	hedges := []string{
		"This Cannot be Determined from the artifacts",
		"the value is underdetermined",
		"there is insufficient trace evidence",
		"no supporting evidence exists",
		"unknown",
		"unclear from artifacts",
	}
	for _, s := range hedges {
		assert.True(t, SaidCannotInfer(s), s)
	}

	assert.False(t, SaidCannotInfer(""))
	assert.False(t, SaidCannotInfer("the record count is 3"))
}

func TestCheckGrounding(t *testing.T) {
	pointers := []string{"runs/a/outputs.json"}

	assert.True(t, CheckGrounding("per the manifest, v1", pointers))
	assert.True(t, CheckGrounding("see runs/a/outputs.json", pointers))
	assert.False(t, CheckGrounding("it is 3", pointers))

	// Vacuously compliant without pointers or text.
	assert.True(t, CheckGrounding("it is 3", nil))
	assert.True(t, CheckGrounding("", pointers))
}

func TestCheckOverconfident(t *testing.T) {
	assert.True(t, CheckOverconfident("The function returns early on line 42", true))
	assert.True(t, CheckOverconfident("because the model retried", true))
	assert.False(t, CheckOverconfident("the outputs differ at record_count", true))

	// Code evidence allowed: mechanism talk is fine.
	assert.False(t, CheckOverconfident("The function returns early", false))
}

func TestScore_Underdetermined(t *testing.T) {
	q := bundle.Question{ID: "q1", Underdetermined: true}

	hedged := Score(q, "cannot determine from the trace artifacts", false)
	assert.True(t, hedged.Correctness)
	require.NotNil(t, hedged.UnderdeterminedHandled)
	assert.True(t, *hedged.UnderdeterminedHandled)
	assert.Empty(t, hedged.ErrorCategory)

	confident := Score(q, "the count is 3 per the manifest", false)
	assert.False(t, confident.Correctness)
	require.NotNil(t, confident.UnderdeterminedHandled)
	assert.False(t, *confident.UnderdeterminedHandled)
	// Error classification applies only to determined questions.
	assert.Empty(t, confident.ErrorCategory)
}

func TestScore_Determined(t *testing.T) {
	q := bundle.Question{
		ID:               "q2",
		ExpectedAnswer:   "traces_may_explain",
		EvidencePointers: []string{"runs/a/explainability_report.json"},
	}

	res := Score(q, "The report judgment is traces_may_explain", false)
	assert.True(t, res.Correctness)
	assert.Nil(t, res.UnderdeterminedHandled)
	assert.True(t, res.GroundingCompliant)
	assert.Zero(t, res.OverconfidentPenalty)

	wrong := Score(q, "it is no_output_diff per the report", false)
	assert.False(t, wrong.Correctness)
	assert.Equal(t, ErrWrongInference, wrong.ErrorCategory)
}

func TestScore_ErrorClassification(t *testing.T) {
	q := bundle.Question{ID: "q3", ExpectedAnswer: "3"}

	empty := Score(q, "", false)
	assert.Equal(t, ErrMissingEvidenceHallucination, empty.ErrorCategory)

	hedgedWrong := Score(q, "I cannot infer the value", false)
	assert.Equal(t, ErrMissingEvidenceHallucination, hedgedWrong.ErrorCategory)

	norm := Score(q, "the raw value was coerced to 4", false)
	assert.Equal(t, ErrNormalizationConfusion, norm.ErrorCategory)

	plain := Score(q, "4", false)
	assert.Equal(t, ErrWrongInference, plain.ErrorCategory)
}

func TestScore_OverconfidencePenalty(t *testing.T) {
	q := bundle.Question{ID: "q4", ExpectedAnswer: "yes"}

	res := Score(q, "yes, the implementation caps previews", false)
	assert.Equal(t, 1, res.OverconfidentPenalty)

	allowed := Score(q, "yes, the implementation caps previews", true)
	assert.Zero(t, allowed.OverconfidentPenalty)
}

func TestScoreBundle(t *testing.T) {
	b := &bundle.Bundle{
		Name: "smoke",
		Questions: []bundle.Question{
			{ID: "q1", ExpectedAnswer: "yes"},
			{ID: "q2", ExpectedAnswer: "3"},
			{ID: "q3", Underdetermined: true},
		},
	}
	answers := map[string]string{
		"q1": "yes",
		"q2": "the raw string was coerced",
		"q3": "underdetermined from the artifacts",
	}

	report := ScoreBundle(b, answers, false)

	assert.Equal(t, "smoke", report.Bundle)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Correct)
	assert.InDelta(t, 2.0/3.0, report.Summary.CorrectnessRate, 1e-9)
	assert.Equal(t, 1, report.Summary.UnderdeterminedHandled)
	assert.Equal(t, map[string]int{ErrNormalizationConfusion: 1}, report.ErrorCategories)
	require.Len(t, report.PerQuestion, 3)
	assert.Equal(t, "q1", report.PerQuestion[0].QuestionID)
}

func TestScoreBundle_MissingAnswerScoresEmpty(t *testing.T) {
	b := &bundle.Bundle{Name: "b", Questions: []bundle.Question{{ID: "q1", ExpectedAnswer: "yes"}}}

	report := ScoreBundle(b, map[string]string{}, false)

	require.Len(t, report.PerQuestion, 1)
	assert.False(t, report.PerQuestion[0].Correctness)
	assert.Equal(t, ErrMissingEvidenceHallucination, report.PerQuestion[0].ErrorCategory)
}

func TestScoreBundle_Empty(t *testing.T) {
	report := ScoreBundle(&bundle.Bundle{Name: "empty"}, nil, false)

	assert.Zero(t, report.Summary.Total)
	assert.Zero(t, report.Summary.CorrectnessRate)
	assert.NotNil(t, report.PerQuestion)
	assert.Empty(t, report.PerQuestion)
}

func TestLoadAnswers_Object(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"q1":"yes","q2":42}`), 0o644))

	answers, err := LoadAnswers(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "yes", "q2": "42"}, answers)
}

func TestLoadAnswers_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.jsonl")
	content := `{"id":"q1","answer":"yes"}

{"question_id":"q2","model_answer":"no"}
{"id":"q3","response":"maybe"}
{"answer":"orphan line with no id"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	answers, err := LoadAnswers(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "yes", "q2": "no", "q3": "maybe"}, answers)
}

func TestLoadAnswers_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"q1"`), 0o644))

	_, err := LoadAnswers(path)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "score.json")
	report := &Report{Bundle: "b", PerQuestion: []ScoreResult{}, ErrorCategories: map[string]int{}}

	require.NoError(t, WriteReport(report, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"bundle": "b"`)
}
