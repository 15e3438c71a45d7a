package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/scholium/extract-cli/internal/config"
	"github.com/scholium/extract-cli/internal/model"
	"github.com/scholium/extract-cli/internal/store"
	"github.com/scholium/extract-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreateRun(ctx context.Context, paper model.PaperMeta) (*model.Run, error) {
	args := m.Called(ctx, paper)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) UpdateRunResult(ctx context.Context, runID string, result *model.ExtractionResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) MarkRunFailed(ctx context.Context, runID string, message string) error {
	return m.Called(ctx, runID, message).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Shared fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 1024,
		},
		Chunking: config.ChunkingConfig{
			MaxChars:       400,
			OverlapChars:   40,
			BoundaryWindow: 60,
		},
		Extraction: config.ExtractionConfig{
			MinConfidence:         0.5,
			FuzzyThreshold:        0.9,
			MaxConcurrentSections: 2,
			CallTimeoutSecs:       5,
		},
		Retry: config.RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 1,
			MaxBackoffMs:     5,
			Multiplier:       2.0,
		},
		Circuit: config.CircuitConfig{
			FailureThreshold: 50,
			ResetTimeoutSecs: 1,
		},
	}
}

func testSection(name, text string) model.SourceSection {
	return model.SourceSection{
		PaperID:   "paper-1",
		Name:      name,
		Text:      text,
		PageStart: 2,
		PageEnd:   4,
	}
}
