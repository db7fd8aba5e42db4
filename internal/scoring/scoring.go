// Package scoring grades free-text model answers against eval questions:
// fuzzy answer matching, underdetermined handling, grounding compliance,
// overconfidence penalties, and a fixed error taxonomy.
package scoring

import (
	"regexp"
	"strings"

	"github.com/sells-group/run-harness/internal/bundle"
)

// Error categories assigned to incorrect answers.
const (
	ErrMissingEvidenceHallucination = "missing_evidence_hallucination"
	ErrWrongArtifactRetrieval       = "wrong_artifact_retrieval"
	ErrWrongInference               = "wrong_inference_from_correct_artifact"
	ErrNormalizationConfusion       = "normalization_confusion"
	ErrUncertaintyCalibration       = "uncertainty_calibration_error"
)

// ErrorCategories lists the full taxonomy in report order.
// wrong_artifact_retrieval and uncertainty_calibration_error are declared
// for report completeness; the current heuristic never assigns them.
var ErrorCategories = []string{
	ErrMissingEvidenceHallucination,
	ErrWrongArtifactRetrieval,
	ErrWrongInference,
	ErrNormalizationConfusion,
	ErrUncertaintyCalibration,
}

// ScoreResult is the grade for a single question.
type ScoreResult struct {
	QuestionID             string `json:"question_id"`
	Correctness            bool   `json:"correctness"`
	UnderdeterminedHandled *bool  `json:"underdetermined_handling"`
	GroundingCompliant     bool   `json:"grounding_compliant"`
	OverconfidentPenalty   int    `json:"overconfident_penalty"`
	ErrorCategory          string `json:"error_category,omitempty"`
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[\s:\(\)\,\;]+`)

	hedgeRes = []*regexp.Regexp{
		regexp.MustCompile(`cannot infer`),
		regexp.MustCompile(`can't infer`),
		regexp.MustCompile(`cannot determine`),
		regexp.MustCompile(`can't determine`),
		regexp.MustCompile(`not inferable`),
		regexp.MustCompile(`underdetermined`),
		regexp.MustCompile(`insufficient.*evidence`),
		regexp.MustCompile(`no.*evidence`),
		regexp.MustCompile(`unknown`),
		regexp.MustCompile(`unclear from artifacts`),
	}

	// Mechanistic claims about internals, penalized when code evidence
	// is off the table.
	overconfidentRes = []*regexp.Regexp{
		regexp.MustCompile(`the code does`),
		regexp.MustCompile(`the function`),
		regexp.MustCompile(`the implementation`),
		regexp.MustCompile(`line [0-9]+`),
		regexp.MustCompile(`func `),
		regexp.MustCompile(`def `),
		regexp.MustCompile(`because the model`),
	}

	// Vocabulary an answer must draw on to count as artifact-grounded.
	groundingRefs = []string{
		"manifest", "trace", "outputs", "config",
		"explainability", "runs/", "normalization_note", "report",
	}

	shortAnswers = map[string]struct{}{"yes": {}, "no": {}, "true": {}, "false": {}}
)

// NormalizeAnswer trims, lowercases, and collapses internal whitespace.
func NormalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}

// normalizeForMatch additionally strips common punctuation for the
// looser secondary containment check.
func normalizeForMatch(s string) string {
	s = punctRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// AnswersMatch reports whether actual answers expected. Exact match after
// normalization; boolean-like short answers require a whole-word hit (so
// "no" never matches inside "normalization"); longer answers allow
// substring containment in either direction on both normalization levels.
func AnswersMatch(expected, actual string) bool {
	ne := NormalizeAnswer(expected)
	na := NormalizeAnswer(actual)
	if ne == na {
		return true
	}
	if ne == "" || na == "" {
		return false
	}
	if _, short := shortAnswers[ne]; short && len(ne) <= 4 {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(ne) + `\b`)
		return re.MatchString(na)
	}
	if strings.Contains(na, ne) || strings.Contains(ne, na) {
		return true
	}
	ne2 := normalizeForMatch(ne)
	na2 := normalizeForMatch(na)
	return strings.Contains(na2, ne2) || strings.Contains(ne2, na2)
}

// SaidCannotInfer reports whether the answer hedges with a
// cannot-infer-from-artifacts phrasing.
func SaidCannotInfer(text string) bool {
	if text == "" {
		return false
	}
	t := NormalizeAnswer(text)
	for _, re := range hedgeRes {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// CheckGrounding reports grounding compliance: vacuously true when the
// question carries no evidence pointers, else the answer must reference
// at least one artifact term.
func CheckGrounding(text string, evidencePointers []string) bool {
	if text == "" || len(evidencePointers) == 0 {
		return true
	}
	t := strings.ToLower(text)
	for _, ref := range groundingRefs {
		if strings.Contains(t, ref) {
			return true
		}
	}
	return false
}

// CheckOverconfident reports whether the answer makes mechanistic claims
// about code internals while code evidence is disallowed.
func CheckOverconfident(text string, codeNotAllowed bool) bool {
	if !codeNotAllowed {
		return false
	}
	t := strings.ToLower(text)
	for _, re := range overconfidentRes {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

// classifyError picks the taxonomy bucket for an incorrect,
// non-underdetermined answer.
func classifyError(expected, actual string) string {
	if actual == "" || strings.Contains(NormalizeAnswer(actual), "cannot infer") {
		return ErrMissingEvidenceHallucination
	}
	combined := strings.ToLower(expected + actual)
	if strings.Contains(combined, "normaliz") ||
		strings.Contains(combined, "raw") ||
		strings.Contains(combined, "coerc") {
		return ErrNormalizationConfusion
	}
	return ErrWrongInference
}

// Score grades one answer against its question.
func Score(q bundle.Question, answer string, codeAllowed bool) ScoreResult {
	result := ScoreResult{
		QuestionID:         q.ID,
		GroundingCompliant: true,
	}

	saidCannotInfer := SaidCannotInfer(answer)

	if q.IsUnderdetermined() {
		// No expected-value comparison: the right move is to hedge.
		result.UnderdeterminedHandled = &saidCannotInfer
		result.Correctness = saidCannotInfer
	} else {
		result.Correctness = AnswersMatch(q.ExpectedAnswer, answer)
		if !result.Correctness {
			result.ErrorCategory = classifyError(q.ExpectedAnswer, answer)
		}
	}

	result.GroundingCompliant = CheckGrounding(answer, q.EvidencePointers)
	if CheckOverconfident(answer, !codeAllowed) {
		result.OverconfidentPenalty = 1
	}
	return result
}
