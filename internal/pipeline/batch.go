package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholium/extract-cli/internal/model"
)

// defaultSectionLimit bounds concurrent section workers when config leaves
// the limit unset.
const defaultSectionLimit = 3

// BatchCoordinator runs the section processor over many sections under a
// bounded pool. One section's failure never cancels its siblings; a
// canceled run context stops new sections from starting and marks the
// unprocessed ones cut short.
type BatchCoordinator struct {
	proc  *SectionProcessor
	limit int

	completed atomic.Int64
	total     atomic.Int64
}

// NewBatchCoordinator creates a coordinator with the given concurrency
// limit; limit <= 0 falls back to the default.
func NewBatchCoordinator(proc *SectionProcessor, limit int) *BatchCoordinator {
	if limit <= 0 {
		limit = defaultSectionLimit
	}
	return &BatchCoordinator{proc: proc, limit: limit}
}

// Progress reports completed and total section counts. Completed only ever
// increases while a run is in flight.
func (b *BatchCoordinator) Progress() (completed, total int) {
	return int(b.completed.Load()), int(b.total.Load())
}

// Run processes every section and assembles the extraction result in
// section order regardless of completion order.
func (b *BatchCoordinator) Run(ctx context.Context, paper model.PaperMeta, sections []model.SourceSection) *model.ExtractionResult {
	b.completed.Store(0)
	b.total.Store(int64(len(sections)))

	log := zap.L().With(zap.String("paper", paper.ID))
	log.Info("pipeline: batch starting",
		zap.Int("sections", len(sections)),
		zap.Int("concurrency", b.limit),
	)

	result := &model.ExtractionResult{
		Paper:     paper,
		CreatedAt: time.Now().UTC(),
	}

	// One sequential call writes the system prompt to the cache before
	// workers fan out; a lone section warms it on its own first call.
	if len(sections) > 1 && b.limit > 1 {
		result.Usage.Add(b.proc.Warm(ctx, sections))
	}

	outcomes := make([]SectionOutcome, len(sections))

	g := new(errgroup.Group)
	g.SetLimit(b.limit)
	for i, section := range sections {
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = cutShortOutcome(section)
			} else {
				outcomes[i] = b.proc.Process(ctx, section)
			}
			done := b.completed.Add(1)
			log.Debug("pipeline: section finished",
				zap.String("section", section.Name),
				zap.Int64("completed", done),
				zap.Int("total", len(sections)),
			)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	for _, o := range outcomes {
		result.Elements = append(result.Elements, o.Elements...)
		result.Sections = append(result.Sections, o.Metrics)
		result.Usage.Add(o.Usage)
	}

	attempted, verified, rejected := result.Totals()
	log.Info("pipeline: batch done",
		zap.Int("attempted", attempted),
		zap.Int("verified", verified),
		zap.Int("rejected", rejected),
		zap.Int("failed_sections", len(result.FailedSections())),
	)
	return result
}

// cutShortOutcome records a section the run was canceled before reaching.
func cutShortOutcome(section model.SourceSection) SectionOutcome {
	return SectionOutcome{
		Metrics: model.SectionMetrics{
			Section:       section.Name,
			Status:        model.SectionPartial,
			CutShort:      true,
			FailureReason: "run canceled before section started",
		},
	}
}
