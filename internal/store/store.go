// Package store persists extraction runs and their results.
package store

import (
	"context"

	"github.com/scholium/extract-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	PaperID string          `json:"paper_id,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	CreateRun(ctx context.Context, paper model.PaperMeta) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.ExtractionResult) error
	MarkRunFailed(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
