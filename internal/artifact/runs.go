package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// RunSummary is one row of the runs listing, built from a run's manifest.
// Missing manifests still produce a row so stale runs stay visible.
type RunSummary struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	Order       string `json:"order"`
	TraceSchema string `json:"trace_schema"`
	NormVersion string `json:"norm_version"`
	Provenance  string `json:"provenance"`
	HasManifest bool   `json:"has_manifest"`
}

// ListRuns scans a runs directory and summarizes each run from its
// manifest, sorted by run name.
func ListRuns(runsDir string) ([]RunSummary, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read runs dir %s", runsDir)
	}

	var rows []RunSummary
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		row := RunSummary{
			Name:        e.Name(),
			Format:      "-",
			Order:       "-",
			TraceSchema: "no manifest",
			NormVersion: "-",
			Provenance:  "-",
		}
		m, err := ReadManifest(filepath.Join(runsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if m != nil {
			row.HasManifest = true
			row.Format = configString(m.Config, "format")
			row.Order = configString(m.Config, "order")
			row.TraceSchema = orUnknown(m.TraceSchemaVersion)
			row.NormVersion = orUnknown(m.NormalizeOutputVersion)
			if m.InputProvenance != "" {
				row.Provenance = m.InputProvenance
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

func configString(cfg map[string]any, key string) string {
	if cfg == nil {
		return "-"
	}
	v, ok := cfg[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%v", v)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
