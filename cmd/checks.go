package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/probe"
)

var checksOut string

var checksCmd = &cobra.Command{
	Use:   "checks [run_dir...]",
	Short: "Run metamorphic invariant checks over runs",
	Long: `Checks order preservation, normalization idempotence, and format type
drift for each run. With no arguments, every directory under the
configured runs dir is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			entries, err := os.ReadDir(cfg.Runs.Dir)
			if err != nil {
				printErrorJSON("No run path or runs/ directory found")
				os.Exit(1)
			}
			for _, e := range entries {
				if e.IsDir() {
					paths = append(paths, filepath.Join(cfg.Runs.Dir, e.Name()))
				}
			}
		}

		report, err := probe.Check(paths)
		if err != nil {
			return err
		}

		out := checksOut
		if out == "" {
			out = filepath.Join(cfg.Runs.Dir, "metamorphic_report.json")
		}
		if err := probe.WriteCheckReport(report, out); err != nil {
			return err
		}
		zap.L().Info("checks: report written", zap.String("path", out))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	checksCmd.Flags().StringVar(&checksOut, "out", "", "report path (default <runs_dir>/metamorphic_report.json)")
	rootCmd.AddCommand(checksCmd)
}
