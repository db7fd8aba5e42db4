package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/run-harness/internal/artifact"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run artifact directories",
}

var runsListCmd = &cobra.Command{
	Use:   "list [runs_dir]",
	Short: "List runs with manifest metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runsDir := cfg.Runs.Dir
		if len(args) == 1 {
			runsDir = args[0]
		}

		rows, err := artifact.ListRuns(runsDir)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, rows)
		return nil
	},
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular run listing to w.
func formatRunsList(out io.Writer, rows []artifact.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tFORMAT\tORDER\tTRACE_VER\tNORM_VER\tPROVENANCE")
	_, _ = fmt.Fprintln(w, "---\t------\t-----\t---------\t--------\t----------")

	for _, r := range rows {
		prov := r.Provenance
		if len(prov) > 40 {
			prov = prov[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Format, r.Order, r.TraceSchema, r.NormVersion, prov)
	}
	_ = w.Flush()
}
