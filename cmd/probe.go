package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe <run_dir>",
	Short: "Summarize a run folder: schema, ordering, trace inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := probe.Summarize(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("run: %s\n\n", s.Run)
		fmt.Printf("record_count: %d\n", s.RecordCount)
		fmt.Println("schema + types:")
		fields := make([]string, 0, len(s.FieldTypes))
		for f := range s.FieldTypes {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Printf("  %s: ", f)
			for i, t := range s.FieldTypes[f] {
				if i > 0 {
					fmt.Print(", ")
				}
				fmt.Print(t)
			}
			fmt.Println()
		}
		fmt.Printf("ordering_signature: %s\n", s.OrderingSignature)
		fmt.Printf("traces: %d (%s naming)\n", s.TraceCount, s.TraceNaming)
		return nil
	},
}

var probeTypesCmd = &cobra.Command{
	Use:   "types <run_dir>",
	Short: "Probe per-field type distributions and numeric-string gaps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := probe.Summarize(args[0])
		if err != nil {
			return err
		}
		if s.RecordCount == 0 {
			fmt.Fprintln(os.Stderr, "No records in this run.")
			return nil
		}

		recs, err := loadOrderedRecords(args[0])
		if err != nil {
			return err
		}
		tp := probe.ProbeTypes(recs)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tp)
	},
}

func init() {
	probeCmd.AddCommand(probeTypesCmd)
	rootCmd.AddCommand(probeCmd)
}

// loadOrderedRecords flattens a run's keyed records into index order.
func loadOrderedRecords(runPath string) ([]artifact.Record, error) {
	keyed, err := artifact.LoadRecords(runPath)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(keyed))
	for idx := range keyed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	out := make([]artifact.Record, len(indices))
	for i, idx := range indices {
		out[i] = keyed[idx]
	}
	return out, nil
}
