package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/run-harness/internal/bundle"
)

var (
	bundleBank     string
	bundleRepoRoot string
	bundleTag      string
	bundleIDs      string
	bundleSubset   int
	bundleName     string
	bundleOutDir   string
	bundleNoCopy   bool
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Assemble eval bundles from the question bank",
}

var bundleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an eval bundle folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		bank := bundleBank
		if bank == "" {
			bank = cfg.Eval.QuestionBank
		}
		if _, err := os.Stat(bank); err != nil {
			fmt.Fprintf(os.Stderr, "Question bank not found: %s\n", bank)
			os.Exit(1)
		}

		questions, err := bundle.LoadQuestionBank(bank)
		if err != nil {
			return err
		}

		filter := bundle.Filter{Tag: bundleTag, Subset: bundleSubset}
		if bundleIDs != "" {
			filter.IDs = strings.Split(bundleIDs, ",")
		}
		questions = filter.Apply(questions)

		outDir := bundleOutDir
		if outDir == "" {
			outDir = cfg.Eval.BundleDir
		}

		dir, err := bundle.Create(bundleRepoRoot, questions, bundle.CreateOptions{
			Name:          bundleName,
			OutDir:        outDir,
			CopyArtifacts: !bundleNoCopy,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Created %s\n", dir)
		fmt.Println(dir)
		return nil
	},
}

func init() {
	f := bundleCreateCmd.Flags()
	f.StringVarP(&bundleBank, "question-bank", "q", "", "question bank file (JSONL or YAML)")
	f.StringVarP(&bundleRepoRoot, "repo-root", "r", ".", "repo root containing runs/")
	f.StringVarP(&bundleTag, "tag", "t", "", "filter questions by tag")
	f.StringVar(&bundleIDs, "ids", "", "comma-separated question IDs")
	f.IntVarP(&bundleSubset, "subset", "n", 0, "cap question count")
	f.StringVarP(&bundleName, "name", "N", "default", "bundle name suffix")
	f.StringVarP(&bundleOutDir, "out-dir", "o", "", "output directory for bundles")
	f.BoolVar(&bundleNoCopy, "no-copy", false, "store artifact paths only, don't copy files")

	bundleCmd.AddCommand(bundleCreateCmd)
	rootCmd.AddCommand(bundleCmd)
}
