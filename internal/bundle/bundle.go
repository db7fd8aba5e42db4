// Package bundle assembles and loads eval bundles: a question set plus
// the run artifacts a model is allowed to consult when answering.
package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ExpectedLabelUnderdetermined marks questions whose correct answer,
// given only artifacts, is "cannot be determined".
const ExpectedLabelUnderdetermined = "UNDERDETERMINED"

// Question is one eval question drawn from the question bank.
type Question struct {
	ID               string   `json:"id" yaml:"id"`
	Prompt           string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ExpectedAnswer   string   `json:"expected_answer,omitempty" yaml:"expected_answer,omitempty"`
	ExpectedLabel    string   `json:"expected_label,omitempty" yaml:"expected_label,omitempty"`
	Underdetermined  bool     `json:"underdetermined,omitempty" yaml:"underdetermined,omitempty"`
	Tags             []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Artifact         string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	EvidencePointers []string `json:"evidence_pointers,omitempty" yaml:"evidence_pointers,omitempty"`
}

// IsUnderdetermined reports whether the question expects a hedge answer.
func (q Question) IsUnderdetermined() bool {
	return q.Underdetermined || q.ExpectedLabel == ExpectedLabelUnderdetermined
}

// Bundle is the on-disk bundle.json payload.
type Bundle struct {
	Name              string              `json:"name"`
	Created           time.Time           `json:"created"`
	Questions         []Question          `json:"questions"`
	ResolvedArtifacts map[string][]string `json:"resolved_artifacts"`
	Constraints       map[string]string   `json:"constraints"`
}

// LoadQuestionBank reads a question bank file. JSONL is the native
// format; .yaml/.yml banks are accepted for hand-maintained sets.
func LoadQuestionBank(path string) ([]Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "bundle: read question bank %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var questions []Question
		if err := yaml.Unmarshal(raw, &questions); err != nil {
			return nil, eris.Wrap(err, "bundle: parse yaml question bank")
		}
		return questions, nil
	}

	var questions []Question
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var q Question
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			return nil, eris.Wrapf(err, "bundle: parse question bank line %d", i+1)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Filter narrows a question set. IDs wins over tag; subset caps the
// count, keeping bank order so bundles stay reproducible.
type Filter struct {
	IDs    []string
	Tag    string
	Subset int
}

// Apply returns the questions selected by the filter.
func (f Filter) Apply(questions []Question) []Question {
	out := questions
	if len(f.IDs) > 0 {
		want := make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			want[strings.TrimSpace(id)] = struct{}{}
		}
		var kept []Question
		for _, q := range out {
			if _, ok := want[q.ID]; ok {
				kept = append(kept, q)
			}
		}
		out = kept
	} else if f.Tag != "" {
		var kept []Question
		for _, q := range out {
			for _, t := range q.Tags {
				if t == f.Tag {
					kept = append(kept, q)
					break
				}
			}
		}
		out = kept
	}
	if f.Subset > 0 && len(out) > f.Subset {
		out = out[:f.Subset]
	}
	return out
}

// ResolveArtifacts maps each question to the artifact paths it points at,
// relative to repoRoot. Unknown references resolve to nothing; scoring
// treats missing pointers as "no grounding constraint".
func ResolveArtifacts(repoRoot string, questions []Question) map[string][]string {
	resolved := make(map[string][]string, len(questions))
	for _, q := range questions {
		var paths []string
		ref := q.Artifact
		switch {
		case strings.HasPrefix(ref, "runs/"):
			p := filepath.Join(repoRoot, filepath.FromSlash(ref))
			if _, err := os.Stat(p); err == nil {
				paths = append(paths, p)
			} else if parts := strings.Split(ref, "/"); len(parts) > 2 {
				// Subpath gone; fall back to the run directory itself.
				runDir := filepath.Join(repoRoot, "runs", parts[1])
				if _, err := os.Stat(runDir); err == nil {
					paths = append(paths, runDir)
				}
			}
		case strings.Contains(ref, "explainability_report"):
			if p := findReport(repoRoot); p != "" {
				paths = append(paths, p)
			}
		case strings.Contains(ref, "manifest") || strings.Contains(ref, "config"):
			name := "config.json"
			if strings.Contains(ref, "manifest") {
				name = "manifest.json"
			}
			runsDir := filepath.Join(repoRoot, "runs")
			entries, err := os.ReadDir(runsDir)
			if err == nil {
				for _, e := range entries {
					if !e.IsDir() {
						continue
					}
					p := filepath.Join(runsDir, e.Name(), name)
					if _, err := os.Stat(p); err == nil {
						paths = append(paths, p)
					}
				}
			}
		}
		resolved[q.ID] = paths
	}
	return resolved
}

// findReport looks for a previously generated explainability report under
// runs/, newest run first.
func findReport(repoRoot string) string {
	runsDir := filepath.Join(repoRoot, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for _, name := range names {
		p := filepath.Join(runsDir, name, "explainability_report.json")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// CreateOptions controls bundle assembly.
type CreateOptions struct {
	Name          string
	OutDir        string
	CopyArtifacts bool
	// Now stamps the bundle; zero means time.Now. Injected by tests.
	Now time.Time
}

const instructionsText = `Evidence allowed:
- Artifacts in the artifacts/ folder (run outputs, manifests, configs, traces, explainability_report)
- Do NOT use code as evidence unless the artifact explicitly includes script output

For questions marked underdetermined: answer "cannot infer from artifacts" or equivalent.

Cite artifact paths when giving answers.
`

// Create writes a bundle directory <timestamp>_<name>/ under OutDir with
// bundle.json, instructions.txt, artifact_paths.json, and (optionally)
// copies of every resolved artifact. Returns the bundle directory path.
func Create(repoRoot string, questions []Question, opts CreateOptions) (string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	bundleDir := filepath.Join(opts.OutDir, now.Format("20060102_150405")+"_"+name)
	artifactsDir := filepath.Join(bundleDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return "", eris.Wrap(err, "bundle: create dirs")
	}

	resolved := ResolveArtifacts(repoRoot, questions)

	pathSet := make(map[string]struct{})
	for _, paths := range resolved {
		for _, p := range paths {
			pathSet[p] = struct{}{}
		}
	}
	allPaths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		allPaths = append(allPaths, p)
	}
	sort.Strings(allPaths)

	if opts.CopyArtifacts {
		for _, src := range allPaths {
			rel, err := filepath.Rel(repoRoot, src)
			if err != nil || strings.HasPrefix(rel, "..") {
				rel = filepath.Base(src)
			}
			if err := copyPath(src, filepath.Join(artifactsDir, rel)); err != nil {
				return "", err
			}
		}
	}

	b := Bundle{
		Name:              filepath.Base(bundleDir),
		Created:           now,
		Questions:         questions,
		ResolvedArtifacts: resolved,
		Constraints: map[string]string{
			"allowed_evidence":         "artifacts in bundle only; no code inspection unless explicitly in artifact list",
			"underdetermined_expected": "say 'cannot infer from artifacts' for UNDERDETERMINED questions",
		},
	}
	if err := writeJSON(filepath.Join(bundleDir, "bundle.json"), b); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "instructions.txt"), []byte(instructionsText), 0o644); err != nil {
		return "", eris.Wrap(err, "bundle: write instructions")
	}
	if err := writeJSON(filepath.Join(bundleDir, "artifact_paths.json"), allPaths); err != nil {
		return "", err
	}

	zap.L().Info("bundle: created",
		zap.String("dir", bundleDir),
		zap.Int("questions", len(questions)),
		zap.Int("artifacts", len(allPaths)),
	)
	return bundleDir, nil
}

// Load reads bundle.json from a bundle directory.
func Load(bundleDir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(bundleDir, "bundle.json"))
	if err != nil {
		return nil, eris.Wrapf(err, "bundle: read %s", bundleDir)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, eris.Wrap(err, "bundle: parse bundle.json")
	}
	return &b, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "bundle: marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "bundle: write %s", filepath.Base(path))
	}
	return nil
}

// copyPath copies a file or directory tree.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return eris.Wrapf(err, "bundle: stat %s", src)
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrapf(err, "bundle: read %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "bundle: mkdir for %s", dst)
	}
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return eris.Wrapf(err, "bundle: write %s", dst)
	}
	return nil
}
