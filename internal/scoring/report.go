package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/run-harness/internal/bundle"
)

// Summary aggregates per-question results.
type Summary struct {
	Total                  int     `json:"total"`
	Correct                int     `json:"correct"`
	CorrectnessRate        float64 `json:"correctness_rate"`
	UnderdeterminedHandled int     `json:"underdetermined_handled"`
	GroundingCompliant     int     `json:"grounding_compliant"`
	OverconfidentPenalties int     `json:"overconfident_penalties"`
}

// Report is the full score.json payload for one bundle/answers pairing.
type Report struct {
	Bundle          string         `json:"bundle"`
	AnswersFile     string         `json:"answers_file"`
	Summary         Summary        `json:"summary"`
	PerQuestion     []ScoreResult  `json:"per_question"`
	ErrorCategories map[string]int `json:"error_categories"`
}

// ScoreBundle grades every question in the bundle against the provided
// answers. Missing answers score as empty strings. Results keep bundle
// order so reports are byte-stable for fixed inputs.
func ScoreBundle(b *bundle.Bundle, answers map[string]string, codeAllowed bool) *Report {
	report := &Report{
		Bundle:          b.Name,
		PerQuestion:     []ScoreResult{},
		ErrorCategories: map[string]int{},
	}

	for _, q := range b.Questions {
		res := Score(q, answers[q.ID], codeAllowed)
		report.PerQuestion = append(report.PerQuestion, res)

		report.Summary.Total++
		if res.Correctness {
			report.Summary.Correct++
		}
		if res.UnderdeterminedHandled != nil && *res.UnderdeterminedHandled {
			report.Summary.UnderdeterminedHandled++
		}
		if res.GroundingCompliant {
			report.Summary.GroundingCompliant++
		}
		report.Summary.OverconfidentPenalties += res.OverconfidentPenalty
		if res.ErrorCategory != "" {
			report.ErrorCategories[res.ErrorCategory]++
		}
	}
	if report.Summary.Total > 0 {
		report.Summary.CorrectnessRate = float64(report.Summary.Correct) / float64(report.Summary.Total)
	}
	return report
}

// LoadAnswers reads model answers: either a JSON object mapping question
// id to answer, or JSONL objects carrying id/question_id plus
// answer/model_answer/response fields.
func LoadAnswers(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read answers %s", path)
	}
	content := strings.TrimSpace(string(raw))
	answers := make(map[string]string)

	if strings.HasPrefix(content, "{") {
		var data map[string]any
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			return nil, eris.Wrap(err, "scoring: parse answers object")
		}
		for k, v := range data {
			answers[k] = answerString(v)
		}
		return answers, nil
	}

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, eris.Wrapf(err, "scoring: parse answers line %d", i+1)
		}
		id := firstString(obj, "id", "question_id")
		if id == "" {
			continue
		}
		answers[id] = firstString(obj, "answer", "model_answer", "response")
	}
	return answers, nil
}

// WriteReport persists a score report as indented JSON.
func WriteReport(report *Report, path string) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "scoring: marshal report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "scoring: mkdir report dir")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrap(err, "scoring: write report")
	}
	return nil
}

func answerString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := answerString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}
