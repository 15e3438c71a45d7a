package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholium/extract-cli/internal/chunker"
	"github.com/scholium/extract-cli/internal/config"
	"github.com/scholium/extract-cli/internal/model"
	"github.com/scholium/extract-cli/internal/recovery"
	"github.com/scholium/extract-cli/internal/resilience"
	"github.com/scholium/extract-cli/internal/validate"
	"github.com/scholium/extract-cli/pkg/anthropic"
)

// SectionOutcome is everything one section's processing produced: the
// verified elements in chunk order, the metrics record, and the token
// usage its model calls consumed.
type SectionOutcome struct {
	Elements []model.ExtractedElement
	Metrics  model.SectionMetrics
	Usage    model.TokenUsage
}

// SectionProcessor runs one section through chunking, model dispatch,
// response recovery, verbatim validation, and aggregation. Chunk-level
// failures degrade the section rather than aborting it; only an
// all-chunks failure yields a Failed outcome.
type SectionProcessor struct {
	client    anthropic.Client
	chunker   *chunker.Chunker
	recovery  *recovery.Engine
	validator *validate.Validator
	breaker   *resilience.CircuitBreaker

	retryCfg      resilience.RetryConfig
	model         string
	maxTokens     int64
	minConfidence float64
	callTimeout   time.Duration
}

// NewSectionProcessor wires a processor from config. The breaker is shared
// across sections so sustained upstream failure trips once, not per section.
func NewSectionProcessor(cfg *config.Config, client anthropic.Client, breaker *resilience.CircuitBreaker) (*SectionProcessor, error) {
	ck, err := chunker.New(chunker.Config{
		MaxChars:       cfg.Chunking.MaxChars,
		OverlapChars:   cfg.Chunking.OverlapChars,
		BoundaryWindow: cfg.Chunking.BoundaryWindow,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build chunker")
	}

	return &SectionProcessor{
		client:        client,
		chunker:       ck,
		recovery:      recovery.NewEngine(),
		validator:     validate.New(validate.Config{FuzzyThreshold: cfg.Extraction.FuzzyThreshold}),
		breaker:       breaker,
		retryCfg:      cfg.Retry.ToRetryConfig(),
		model:         cfg.Anthropic.Model,
		maxTokens:     cfg.Anthropic.MaxTokens,
		minConfidence: cfg.Extraction.MinConfidence,
		callTimeout:   cfg.Extraction.CallTimeout(),
	}, nil
}

// Process runs the full state machine for one section. It never returns an
// error: every failure mode lands in the outcome's metrics.
func (p *SectionProcessor) Process(ctx context.Context, section model.SourceSection) SectionOutcome {
	log := zap.L().With(zap.String("paper", section.PaperID), zap.String("section", section.Name))

	outcome := SectionOutcome{
		Metrics: model.SectionMetrics{Section: section.Name},
	}
	metrics := &outcome.Metrics

	chunks := p.chunker.Split(section.Text)
	metrics.Chunks = len(chunks)
	if len(chunks) == 0 {
		metrics.Status = model.SectionCompleted
		return outcome
	}

	var failedChunks int
	var lastFailure string
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			metrics.CutShort = true
			break
		}

		raw, usage, err := p.dispatch(ctx, section, chunk)
		outcome.Usage.Add(usage)
		if err != nil {
			failedChunks++
			lastFailure = err.Error()
			metrics.Diagnostics = append(metrics.Diagnostics,
				fmt.Sprintf("chunk %d: %v", chunk.Index, err))

			var attempts *resilience.AttemptsError
			if errors.As(err, &attempts) {
				metrics.RetryCount += len(attempts.Attempts) - 1
				if attempts.Canceled {
					metrics.CutShort = true
				}
			}
			if metrics.CutShort || ctx.Err() != nil {
				metrics.CutShort = true
				break
			}
			continue
		}

		rec := p.recovery.Recover(raw)
		if !rec.Success {
			failedChunks++
			lastFailure = "response unrecoverable"
			metrics.Diagnostics = append(metrics.Diagnostics,
				fmt.Sprintf("chunk %d unrecoverable: %s", chunk.Index, strings.Join(rec.Diagnostics, "; ")))
			log.Warn("pipeline: chunk response unrecoverable", zap.Int("chunk", chunk.Index))
			continue
		}
		if rec.Strategy != "strict" && !contains(metrics.RecoveryStrategies, rec.Strategy) {
			metrics.RecoveryStrategies = append(metrics.RecoveryStrategies, rec.Strategy)
		}

		for _, cand := range rec.Elements {
			metrics.Attempted++

			elemType := model.ElementType(cand.ElementType)
			if !elemType.Valid() {
				metrics.Rejected++
				continue
			}

			match := p.validator.Validate(cand.Text, section)
			if match.Status != model.StatusVerified {
				metrics.Rejected++
				continue
			}

			confidence := cand.Confidence * rec.Confidence
			if confidence < p.minConfidence {
				metrics.LowConf++
				continue
			}

			outcome.Elements = append(outcome.Elements, model.ExtractedElement{
				Type:        elemType,
				Text:        cand.Text,
				Section:     section.Name,
				Evidence:    model.NormalizeEvidence(cand.EvidenceType),
				Confidence:  confidence,
				Page:        match.Page,
				Status:      model.StatusVerified,
				MatchMethod: match.Method,
				MatchScore:  match.Score,
			})
			metrics.Verified++
		}
	}

	outcome.Elements = dedup(outcome.Elements, metrics)

	switch {
	case failedChunks == len(chunks):
		metrics.Status = model.SectionFailed
		metrics.FailureReason = fmt.Sprintf("all %d chunks failed; last: %s", len(chunks), lastFailure)
	case failedChunks > 0 || metrics.CutShort:
		metrics.Status = model.SectionPartial
		if failedChunks > 0 {
			metrics.FailureReason = fmt.Sprintf("%d of %d chunks failed; last: %s", failedChunks, len(chunks), lastFailure)
		}
	default:
		metrics.Status = model.SectionCompleted
	}

	log.Info("pipeline: section done",
		zap.String("status", string(metrics.Status)),
		zap.Int("verified", metrics.Verified),
		zap.Int("rejected", metrics.Rejected),
	)
	return outcome
}

// Warm primes the shared prompt cache by sending the first chunk of the
// first non-empty section once before concurrent workers start, so they
// read the cached system prompt instead of each writing it. Best effort:
// on failure the batch proceeds with a cold cache.
func (p *SectionProcessor) Warm(ctx context.Context, sections []model.SourceSection) model.TokenUsage {
	for _, section := range sections {
		chunks := p.chunker.Split(section.Text)
		if len(chunks) == 0 {
			continue
		}

		resp, err := anthropic.WarmCache(ctx, p.client, p.buildRequest(section, chunks[0]))
		if err != nil {
			zap.L().Debug("pipeline: cache warm failed", zap.Error(err))
			return model.TokenUsage{}
		}
		return model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		}
	}
	return model.TokenUsage{}
}

func (p *SectionProcessor) buildRequest(section model.SourceSection, chunk model.Chunk) anthropic.MessageRequest {
	return anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(extractSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(section, chunk)},
		},
	}
}

// dispatch sends one chunk to the model under the retry coordinator and
// circuit breaker, with a per-call timeout. Usage is reported even when the
// final attempt fails, since earlier attempts may have consumed tokens.
func (p *SectionProcessor) dispatch(ctx context.Context, section model.SourceSection, chunk model.Chunk) (string, model.TokenUsage, error) {
	req := p.buildRequest(section, chunk)

	var usage model.TokenUsage
	cfg := p.retryCfg
	cfg.OnRetry = resilience.RetryLogger("pipeline: chunk call")

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
		return resilience.ExecuteVal(callCtx, p.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			r, callErr := p.client.CreateMessage(ctx, req)
			if r != nil {
				usage.Add(model.TokenUsage{
					InputTokens:         int(r.Usage.InputTokens),
					OutputTokens:        int(r.Usage.OutputTokens),
					CacheCreationTokens: int(r.Usage.CacheCreationInputTokens),
					CacheReadTokens:     int(r.Usage.CacheReadInputTokens),
				})
			}
			return r, callErr
		})
	})
	if err != nil {
		return "", usage, err
	}
	return resp.Text(), usage, nil
}

// dedup merges near-identical elements, keeping the higher confidence and
// the earlier position. Identity is whitespace-collapsed lowercased text
// plus element type.
func dedup(elements []model.ExtractedElement, metrics *model.SectionMetrics) []model.ExtractedElement {
	if len(elements) < 2 {
		return elements
	}

	seen := make(map[string]int, len(elements))
	out := elements[:0]
	for _, el := range elements {
		key := dedupKey(el)
		if i, ok := seen[key]; ok {
			metrics.Duplicates++
			if el.Confidence > out[i].Confidence {
				out[i] = el
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, el)
	}
	return out
}

func dedupKey(el model.ExtractedElement) string {
	return strings.Join(strings.Fields(strings.ToLower(el.Text)), " ") + "|" + string(el.Type)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
