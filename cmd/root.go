package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholium/extract-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "extract-cli",
	Short: "Research element extraction pipeline",
	Long:  "Extracts claims, findings, methods, and artifacts verbatim from academic-paper text via Claude, validates them against the source, and persists run results.",
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
