package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholium/extract-cli/internal/model"
	"github.com/scholium/extract-cli/internal/source"
)

var (
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract research elements from every paper in a directory",
	Long:  "Runs the extraction pipeline over every *.json paper document in the directory. One paper's failure never stops the others.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := filepath.Glob(filepath.Join(args[0], "*.json"))
		if err != nil {
			return eris.Wrap(err, "glob papers")
		}
		sort.Strings(paths)

		return processPapers(ctx, paths, batchLimit, batchConcurrency, func(ctx context.Context, path string) (*model.Run, error) {
			paper, sections, err := source.LoadPaper(path)
			if err != nil {
				return nil, err
			}
			return env.Pipeline.Run(ctx, paper, sections)
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of papers to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 1, "papers processed at once")
	rootCmd.AddCommand(batchCmd)
}

// extractFunc is the callback signature for running extraction on one paper
// document.
type extractFunc func(ctx context.Context, path string) (*model.Run, error)

// processPapers applies limit, then runs the papers concurrently. A failed
// paper is logged and counted, never fatal to the batch.
func processPapers(ctx context.Context, paths []string, limit, concurrency int, run extractFunc) error {
	if len(paths) == 0 {
		zap.L().Info("no paper documents found")
		return nil
	}

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("papers", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("paper_file", path))

			r, err := run(ctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("batch: paper failed", zap.Error(err))
				return nil
			}
			if r.Status == model.RunStatusFailed {
				failed.Add(1)
				log.Warn("batch: run failed", zap.String("run_id", r.ID), zap.String("reason", r.Error))
				return nil
			}

			succeeded.Add(1)
			attempted, verified, rejected := r.Result.Totals()
			log.Info("batch: paper done",
				zap.String("run_id", r.ID),
				zap.Int("attempted", attempted),
				zap.Int("verified", verified),
				zap.Int("rejected", rejected),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
