package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/run-harness/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "run-harness",
	Short: "Run-artifact comparison and explainability harness",
	Long:  "Ingests tabular records through a configurable pipeline, persists run artifacts, and compares runs to judge whether traces and manifests explain output differences.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
