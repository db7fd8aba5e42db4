package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Current artifact format versions stamped into new manifests.
const (
	NormalizeOutputVersion = "1.0"
	TraceSchemaVersion     = "v1"
)

// Manifest records how a run was configured and where its input came from.
type Manifest struct {
	Config                 map[string]any `json:"config"`
	InputProvenance        string         `json:"input_provenance"`
	TraceSchemaVersion     string         `json:"trace_schema_version"`
	NormalizeOutputVersion string         `json:"normalize_output_version"`
}

// ReadManifest loads manifest.json from a run directory. Returns nil
// without error when the manifest is absent.
//
// A historical producer wrote the trace version under the misspelled key
// trace_schemaversion; both spellings are accepted, the correct one wins.
func ReadManifest(runPath string) (*Manifest, error) {
	path := filepath.Join(runPath, "manifest.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "artifact: read manifest")
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, eris.Wrap(err, "artifact: parse manifest")
	}

	m := &Manifest{}
	if cfg, ok := fields["config"].(map[string]any); ok {
		m.Config = cfg
	}
	if s, ok := fields["input_provenance"].(string); ok {
		m.InputProvenance = s
	}
	if s, ok := fields["trace_schema_version"].(string); ok {
		m.TraceSchemaVersion = s
	} else if s, ok := fields["trace_schemaversion"].(string); ok {
		m.TraceSchemaVersion = s
	}
	if s, ok := fields["normalize_output_version"].(string); ok {
		m.NormalizeOutputVersion = s
	}
	return m, nil
}

// WriteManifest writes manifest.json for a run directory, always under
// the correctly spelled trace_schema_version key.
func WriteManifest(runPath string, config map[string]any, inputProvenance string) error {
	if inputProvenance == "" {
		inputProvenance = runPath
	}
	m := Manifest{
		Config:                 config,
		InputProvenance:        inputProvenance,
		TraceSchemaVersion:     TraceSchemaVersion,
		NormalizeOutputVersion: NormalizeOutputVersion,
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "artifact: marshal manifest")
	}
	if err := os.WriteFile(filepath.Join(runPath, "manifest.json"), raw, 0o644); err != nil {
		return eris.Wrap(err, "artifact: write manifest")
	}
	return nil
}
