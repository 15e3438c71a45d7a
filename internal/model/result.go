package model

import "time"

// SectionStatus is the terminal state of one section's processing.
type SectionStatus string

const (
	SectionCompleted SectionStatus = "completed"
	SectionPartial   SectionStatus = "partially_completed"
	SectionFailed    SectionStatus = "failed"
)

// SectionMetrics summarizes what happened to one section. Failures are
// always recorded here rather than silently swallowed.
type SectionMetrics struct {
	Section    string        `json:"section"`
	Status     SectionStatus `json:"status"`
	Chunks     int           `json:"chunks"`
	Attempted  int           `json:"attempted"`
	Verified   int           `json:"verified"`
	Rejected   int           `json:"rejected"`
	LowConf    int           `json:"filtered_low_confidence"`
	Duplicates int           `json:"deduplicated"`

	// RecoveryStrategies names every repair strategy that produced usable
	// output for this section, in first-use order.
	RecoveryStrategies []string `json:"recovery_strategies,omitempty"`

	RetryCount    int      `json:"retry_count"`
	FailureReason string   `json:"failure_reason,omitempty"`
	CutShort      bool     `json:"cut_short,omitempty"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
}

// PaperMeta identifies the paper an extraction run covered.
type PaperMeta struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Pages int    `json:"pages,omitempty"`
}

// TokenUsage tallies model token consumption for a run.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// ExtractionResult is the sole output contract of the pipeline: paper
// metadata, verified elements in section-then-chunk order, and per-section
// metrics. Immutable once returned; owned by the caller thereafter.
type ExtractionResult struct {
	Paper     PaperMeta          `json:"paper"`
	Elements  []ExtractedElement `json:"elements"`
	Sections  []SectionMetrics   `json:"sections"`
	Usage     TokenUsage         `json:"token_usage"`
	CreatedAt time.Time          `json:"created_at"`
}

// Totals returns overall attempted/verified/rejected counts across sections.
func (r *ExtractionResult) Totals() (attempted, verified, rejected int) {
	for _, s := range r.Sections {
		attempted += s.Attempted
		verified += s.Verified
		rejected += s.Rejected
	}
	return attempted, verified, rejected
}

// FailedSections returns the metrics of every section that ended Failed.
func (r *ExtractionResult) FailedSections() []SectionMetrics {
	var failed []SectionMetrics
	for _, s := range r.Sections {
		if s.Status == SectionFailed {
			failed = append(failed, s)
		}
	}
	return failed
}
