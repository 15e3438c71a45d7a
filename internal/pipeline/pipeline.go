package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholium/extract-cli/internal/config"
	"github.com/scholium/extract-cli/internal/model"
	"github.com/scholium/extract-cli/internal/resilience"
	"github.com/scholium/extract-cli/internal/store"
	"github.com/scholium/extract-cli/pkg/anthropic"
)

// Pipeline ties together the section processor, the batch coordinator, and
// run persistence for one paper at a time.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	coord  *BatchCoordinator
	aiName string
}

// New creates a Pipeline with all dependencies. The circuit breaker is
// shared by all sections of all runs this pipeline executes.
func New(cfg *config.Config, st store.Store, aiClient anthropic.Client) (*Pipeline, error) {
	breaker := resilience.NewCircuitBreaker(cfg.Circuit.ToCircuitConfig())
	proc, err := NewSectionProcessor(cfg, aiClient, breaker)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		coord:  NewBatchCoordinator(proc, cfg.Extraction.MaxConcurrentSections),
		aiName: cfg.Anthropic.Model,
	}, nil
}

// Progress reports section completion for the run in flight.
func (p *Pipeline) Progress() (completed, total int) {
	return p.coord.Progress()
}

// Run extracts every section of one paper, persists the run record through
// its lifecycle, and returns the stored run with its result attached.
func (p *Pipeline) Run(ctx context.Context, paper model.PaperMeta, sections []model.SourceSection) (*model.Run, error) {
	log := zap.L().With(zap.String("paper", paper.ID))
	log.Info("pipeline: starting extraction", zap.Int("sections", len(sections)))

	run, err := p.store.CreateRun(ctx, paper)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusExtracting); err != nil {
		log.Warn("pipeline: failed to update status", zap.Error(err))
	}

	result := p.coord.Run(ctx, paper, sections)
	logUsage(result, p.aiName)

	if err := p.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist result")
	}
	run.Status = model.RunStatusComplete
	run.Result = result

	// A run where every section failed is a failed run, but the result is
	// kept alongside for its diagnostics.
	if failed := result.FailedSections(); len(sections) > 0 && len(failed) == len(sections) {
		reason := failed[0].FailureReason
		if err := p.store.MarkRunFailed(ctx, run.ID, reason); err != nil {
			return nil, eris.Wrap(err, "pipeline: mark run failed")
		}
		run.Status = model.RunStatusFailed
		run.Error = reason
	}

	return run, nil
}

func logUsage(result *model.ExtractionResult, modelName string) {
	u := anthropic.TokenUsage{
		InputTokens:              int64(result.Usage.InputTokens),
		OutputTokens:             int64(result.Usage.OutputTokens),
		CacheCreationInputTokens: int64(result.Usage.CacheCreationTokens),
		CacheReadInputTokens:     int64(result.Usage.CacheReadTokens),
	}
	u.LogCost(modelName, "extract")
}
