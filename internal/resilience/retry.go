package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%). Default: 0.25.
	JitterFraction float64

	// RateLimitFactor stretches the delay for rate-limited failures.
	// Default: 2.0.
	RateLimitFactor float64

	// Classify optionally overrides the default error classification.
	Classify func(err error) ErrorKind

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, kind ErrorKind, err error)
}

// DefaultRetryConfig returns a sensible retry configuration for model calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialBackoff:  500 * time.Millisecond,
		MaxBackoff:      30 * time.Second,
		Multiplier:      2.0,
		JitterFraction:  0.25,
		RateLimitFactor: 2.0,
	}
}

// Attempt records one failed attempt.
type Attempt struct {
	Number int
	Kind   ErrorKind
	Delay  time.Duration
	Err    error
}

// AttemptsError is returned when all attempts fail or retrying stops
// early. Canceled distinguishes context cancellation from exhaustion or a
// fail-fast classification.
type AttemptsError struct {
	Attempts []Attempt
	Err      error
	Canceled bool
}

func (e *AttemptsError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("canceled after %d attempt(s): %v", len(e.Attempts), e.Err)
	}
	return fmt.Sprintf("failed after %d attempt(s): %v", len(e.Attempts), e.Err)
}

func (e *AttemptsError) Unwrap() error {
	return e.Err
}

// Kind returns the classification of the final attempt.
func (e *AttemptsError) Kind() ErrorKind {
	if len(e.Attempts) == 0 {
		return KindUnknown
	}
	return e.Attempts[len(e.Attempts)-1].Kind
}

// Do executes fn with retry logic according to cfg. Each failure is
// classified; the kind's policy decides whether and how to retry.
// Context cancellation stops retries at the next suspension point.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Rate-limited
// failures wait longer between attempts; fail-fast kinds abort
// immediately. On final failure the returned error is an *AttemptsError
// recording every attempt.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	classify := cfg.Classify
	if classify == nil {
		classify = Classify
	}

	var zero T
	var attempts []Attempt
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}

		kind := classify(err)
		attempts = append(attempts, Attempt{Number: attempt + 1, Kind: kind, Err: err})

		if ctx.Err() != nil {
			return zero, &AttemptsError{Attempts: attempts, Err: err, Canceled: true}
		}

		if !kind.Retriable() {
			return zero, &AttemptsError{Attempts: attempts, Err: err}
		}

		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := computeBackoff(attempt, cfg)
		if kind.Policy() == PolicyRetryLongerDelay {
			delay = time.Duration(float64(delay) * cfg.RateLimitFactor)
			if delay > cfg.MaxBackoff {
				delay = cfg.MaxBackoff
			}
		}
		attempts[len(attempts)-1].Delay = delay

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, kind, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AttemptsError{Attempts: attempts, Err: err, Canceled: true}
		case <-timer.C:
		}
	}

	return zero, &AttemptsError{Attempts: attempts, Err: attempts[len(attempts)-1].Err}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.RateLimitFactor <= 0 {
		cfg.RateLimitFactor = 2.0
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}

	// Apply jitter: ±JitterFraction of delay.
	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		jitter := (rand.Float64()*2 - 1) * jitterRange
		delay += jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(operation string) func(int, ErrorKind, error) {
	return func(attempt int, kind ErrorKind, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
