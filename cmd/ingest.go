package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/ingest"
	"github.com/sells-group/run-harness/internal/store"
	"github.com/sells-group/run-harness/internal/trace"
)

var (
	ingestFormat         string
	ingestDryRun         bool
	ingestSkipValidation bool
	ingestNormalizeKeys  bool
	ingestRequired       string
	ingestMinCount       int
	ingestRunOut         string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Parse, validate, and store tabular records",
	Long: `Runs the ingestion pipeline on a JSON or CSV file: parse, optional key
normalization, validation, and persistence to the configured store.
Parsed records are printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		format := ingestFormat
		if format == "" {
			format = "json"
			if strings.HasSuffix(strings.ToLower(args[0]), ".csv") {
				format = "csv"
			}
		}

		var st store.Store
		if !ingestDryRun {
			st, err = store.Open(cfg.Store.Driver, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		opts := ingest.Options{
			Format:         format,
			DryRun:         ingestDryRun,
			SkipValidation: ingestSkipValidation,
			NormalizeKeys:  ingestNormalizeKeys,
		}
		if ingestRequired != "" {
			opts.Rules.Required = strings.Split(ingestRequired, ",")
		}
		if cmd.Flags().Changed("min-count") {
			opts.Rules.MinCount = &ingestMinCount
		}

		records, err := ingest.NewPipeline(st).Run(ctx, string(raw), opts)
		if err != nil {
			return err
		}

		if ingestRunOut != "" {
			if err := writeRunFolder(ingestRunOut, args[0], format, records, opts); err != nil {
				return err
			}
			zap.L().Info("ingest: run folder written", zap.String("dir", ingestRunOut))
		}

		zap.L().Info("ingest: complete",
			zap.String("file", args[0]),
			zap.String("format", format),
			zap.Int("records", len(records)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFormat, "format", "", "input format: json or csv (default inferred from extension)")
	f.BoolVar(&ingestDryRun, "dry-run", false, "parse and validate only, skip persistence")
	f.BoolVar(&ingestSkipValidation, "skip-validation", false, "skip record validation")
	f.BoolVar(&ingestNormalizeKeys, "normalize-keys", false, "lowercase all record keys")
	f.StringVar(&ingestRequired, "required", "", "comma-separated required fields")
	f.IntVar(&ingestMinCount, "min-count", 0, "minimum value for the count field")
	f.StringVar(&ingestRunOut, "run-out", "", "also write a run folder (outputs.json, manifest.json, traces)")
	rootCmd.AddCommand(ingestCmd)
}

// writeRunFolder materializes a comparable run directory from an ingest
// pass: outputs.json, a manifest, and trace evidence for each stage.
func writeRunFolder(runDir, inputFile, format string, records []artifact.Record, opts ingest.Options) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(runDir, "outputs.json"), raw, 0o644); err != nil {
		return err
	}

	config := map[string]any{
		"format":          format,
		"order":           "input",
		"skip_validation": opts.SkipValidation,
		"normalize_keys":  opts.NormalizeKeys,
	}
	if err := artifact.WriteManifest(runDir, config, inputFile); err != nil {
		return err
	}

	tw, err := trace.New(runDir, artifact.NamingV2)
	if err != nil {
		return err
	}
	defer tw.Close() //nolint:errcheck

	if err := tw.Emit("parsed", "ingest.parse", map[string]any{"records": len(records)}); err != nil {
		return err
	}
	if !opts.SkipValidation {
		if err := tw.Emit("validated", "ingest.validate", nil); err != nil {
			return err
		}
	}
	outcome := "saved"
	if opts.DryRun {
		outcome = "skipped"
	}
	if err := tw.EmitDecision(0, "persistence", map[string]any{"dry_run": opts.DryRun}, outcome); err != nil {
		return err
	}
	return tw.Close()
}
