package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scholium/extract-cli/internal/export"
	"github.com/scholium/extract-cli/internal/source"
)

var (
	extractOut    string
	extractFormat string
)

var extractCmd = &cobra.Command{
	Use:   "extract <paper.json>",
	Short: "Extract research elements from one paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(extractFormat)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paper, sections, err := source.LoadPaper(args[0])
		if err != nil {
			return err
		}

		run, err := env.Pipeline.Run(ctx, paper, sections)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stderr, export.Summary(run.Result))

		if err := export.Write(extractOut, format, run.Result); err != nil {
			return err
		}
		zap.L().Info("extract: run recorded", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))

		if run.Error != "" {
			return eris.Errorf("extraction failed: %s", run.Error)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output file path (default stdout for json/yaml)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json, yaml, or xlsx")
	rootCmd.AddCommand(extractCmd)
}
