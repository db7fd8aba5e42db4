package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/run-harness/internal/explain"
)

var (
	gridOut         string
	gridConcurrency int
)

// gridResult pairs two runs with their comparison outcome.
type gridResult struct {
	RunA     string           `json:"run_a"`
	RunB     string           `json:"run_b"`
	Judgment explain.Judgment `json:"judgment"`
	Error    string           `json:"error,omitempty"`
}

var gridCmd = &cobra.Command{
	Use:   "grid <run_dir>...",
	Short: "Compare every pair of runs and summarize judgments",
	Long: `Runs the explainability comparison over all pairs of the given runs.
Each pair is independent, so comparisons run concurrently. Reports are
written under --out as <a>__<b>.json; the pair/judgment summary goes to
stdout.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			if _, err := os.Stat(p); err != nil {
				printErrorJSON(fmt.Sprintf("Run path not found: %s", p))
				os.Exit(1)
			}
		}

		if gridOut != "" {
			if err := os.MkdirAll(gridOut, 0o755); err != nil {
				return err
			}
		}

		type pair struct{ a, b string }
		var pairs []pair
		for i := 0; i < len(args); i++ {
			for j := i + 1; j < len(args); j++ {
				pairs = append(pairs, pair{args[i], args[j]})
			}
		}

		results := make([]gridResult, len(pairs))

		g := new(errgroup.Group)
		g.SetLimit(gridConcurrency)
		for i, p := range pairs {
			g.Go(func() error {
				res := gridResult{RunA: p.a, RunB: p.b}
				report, err := explain.Compare(p.a, p.b, explain.Options{MaxDiffs: cfg.Explain.MaxDiffs})
				if err != nil {
					res.Error = err.Error()
				} else {
					res.Judgment = report.Judgment
					if gridOut != "" {
						name := fmt.Sprintf("%s__%s.json", filepath.Base(p.a), filepath.Base(p.b))
						raw, merr := json.MarshalIndent(report, "", "  ")
						if merr == nil {
							merr = os.WriteFile(filepath.Join(gridOut, name), raw, 0o644)
						}
						if merr != nil {
							res.Error = merr.Error()
						}
					}
				}
				// Each goroutine owns its slot; no coordination needed.
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("grid: complete", zap.Int("pairs", len(pairs)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	gridCmd.Flags().StringVar(&gridOut, "out", "", "directory for per-pair reports")
	gridCmd.Flags().IntVar(&gridConcurrency, "concurrency", 4, "max concurrent comparisons")
	rootCmd.AddCommand(gridCmd)
}
