package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/explain"
)

var (
	explainOut      string
	explainMaxDiffs int
)

var explainCmd = &cobra.Command{
	Use:   "explain <run_a> <run_b>",
	Short: "Diff two runs and judge whether traces explain the output difference",
	Long: `Compares two run directories: raw output diffs, normalized output diffs,
trace diffs, and an explainability judgment with reasons.

The JSON report goes to stdout; --out additionally writes it to
<dir>/explainability_report.json.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runA, runB := args[0], args[1]

		for _, p := range []string{runA, runB} {
			if _, err := os.Stat(p); err != nil {
				printErrorJSON("One or both run paths not found")
				os.Exit(1)
			}
		}

		maxDiffs := explainMaxDiffs
		if maxDiffs == 0 {
			maxDiffs = cfg.Explain.MaxDiffs
		}

		report, err := explain.Compare(runA, runB, explain.Options{MaxDiffs: maxDiffs})
		if err != nil {
			return err
		}

		if explainOut != "" {
			path, err := explain.WriteReport(report, explainOut)
			if err != nil {
				return err
			}
			zap.L().Info("explain: report written", zap.String("path", path))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainOut, "out", "", "directory to write explainability_report.json into")
	explainCmd.Flags().IntVar(&explainMaxDiffs, "max-diffs", 0, "truncate each diff list to N entries (0 = config default, unlimited)")
	rootCmd.AddCommand(explainCmd)
}

// printErrorJSON emits the boundary error shape consumers parse.
func printErrorJSON(msg string) {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	fmt.Println(string(raw))
}
