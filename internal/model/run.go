package model

import "time"

// RunStatus tracks an extraction run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is the persisted record of one extraction run over one paper.
type Run struct {
	ID        string            `json:"id"`
	Paper     PaperMeta         `json:"paper"`
	Status    RunStatus         `json:"status"`
	Result    *ExtractionResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
