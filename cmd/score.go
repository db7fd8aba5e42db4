package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/run-harness/internal/bundle"
	"github.com/sells-group/run-harness/internal/scoring"
)

var (
	scoreOutput      string
	scoreCodeAllowed bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <bundle_dir> <answers_file>",
	Short: "Score model answers against an eval bundle",
	Long: `Grades answers (JSON object or JSONL) against the questions in a bundle:
correctness, underdetermined handling, grounding compliance, overconfidence
penalties, and error categories.

The score JSON is written to the bundle directory (or -o path), a summary
goes to stderr, and the full JSON to stdout.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundleDir, answersFile := args[0], args[1]

		if _, err := os.Stat(filepath.Join(bundleDir, "bundle.json")); err != nil {
			fmt.Fprintf(os.Stderr, "Bundle not found: %s\n", filepath.Join(bundleDir, "bundle.json"))
			os.Exit(1)
		}
		if _, err := os.Stat(answersFile); err != nil {
			fmt.Fprintf(os.Stderr, "Answers file not found: %s\n", answersFile)
			os.Exit(1)
		}

		b, err := bundle.Load(bundleDir)
		if err != nil {
			return err
		}
		answers, err := scoring.LoadAnswers(answersFile)
		if err != nil {
			return err
		}

		report := scoring.ScoreBundle(b, answers, scoreCodeAllowed)
		report.Bundle = filepath.Base(bundleDir)
		report.AnswersFile = answersFile

		outPath := scoreOutput
		if outPath == "" {
			outPath = "score.json"
		}
		if !filepath.IsAbs(outPath) {
			outPath = filepath.Join(bundleDir, outPath)
		}
		if err := scoring.WriteReport(report, outPath); err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Wrote %s\n", outPath)
		fmt.Fprintf(os.Stderr, "Correct: %d/%d\n", report.Summary.Correct, report.Summary.Total)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "score.json", "output score file (relative paths resolve inside the bundle)")
	scoreCmd.Flags().BoolVar(&scoreCodeAllowed, "code-allowed", false, "code evidence is allowed; disables overconfidence penalties")
	rootCmd.AddCommand(scoreCmd)
}
