package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies a failure from the model call, response recovery,
// or validation into one of a closed set of categories. Each kind carries
// a retry policy.
type ErrorKind string

const (
	KindTransientNetwork   ErrorKind = "transient_network"
	KindRateLimited        ErrorKind = "rate_limited"
	KindInvalidResponse    ErrorKind = "invalid_response"
	KindValidationFailed   ErrorKind = "validation_failed"
	KindConfigurationError ErrorKind = "configuration_error"
	KindUnknown            ErrorKind = "unknown"
)

// Policy is what the retry coordinator does with an error of a given kind.
type Policy int

const (
	// PolicyRetryBackoff retries with standard exponential backoff.
	PolicyRetryBackoff Policy = iota
	// PolicyRetryLongerDelay retries with a stretched backoff delay.
	PolicyRetryLongerDelay
	// PolicyRetryThenFail retries, but the caller should treat final
	// failure as a data problem rather than an availability problem.
	PolicyRetryThenFail
	// PolicyFailFast aborts immediately without retrying.
	PolicyFailFast
)

// Policy returns the retry policy for the kind.
func (k ErrorKind) Policy() Policy {
	switch k {
	case KindTransientNetwork:
		return PolicyRetryBackoff
	case KindRateLimited:
		return PolicyRetryLongerDelay
	case KindInvalidResponse:
		return PolicyRetryThenFail
	case KindValidationFailed, KindConfigurationError:
		return PolicyFailFast
	default:
		return PolicyRetryBackoff
	}
}

// Retriable reports whether the kind's policy permits another attempt.
func (k ErrorKind) Retriable() bool {
	return k.Policy() != PolicyFailFast
}

// ClassifiedError carries an error together with its kind and, when the
// failure came from an HTTP response, the status code.
type ClassifiedError struct {
	Err        error
	Kind       ErrorKind
	StatusCode int
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewClassified wraps an error with an explicit kind.
func NewClassified(kind ErrorKind, err error) *ClassifiedError {
	return &ClassifiedError{Err: err, Kind: kind}
}

// NewClassifiedStatus wraps an HTTP-level error, deriving the kind from
// the status code.
func NewClassifiedStatus(err error, statusCode int) *ClassifiedError {
	return &ClassifiedError{Err: err, Kind: KindForStatus(statusCode), StatusCode: statusCode}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == 429:
		return KindRateLimited
	case statusCode == 408 || (statusCode >= 500 && statusCode <= 599):
		return KindTransientNetwork
	case statusCode == 401 || statusCode == 403:
		return KindConfigurationError
	case statusCode >= 400 && statusCode <= 499:
		return KindInvalidResponse
	default:
		return KindUnknown
	}
}

// Classify determines the kind of an error. Explicit ClassifiedErrors in
// the chain win; otherwise network-level signals and message heuristics
// decide. Unrecognized errors are KindUnknown, which retries with
// standard backoff.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode == 429 {
			return KindRateLimited
		}
		return KindTransientNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransientNetwork
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindTransientNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"rate limit", "too many requests", "overloaded"} {
		if strings.Contains(msg, p) {
			return KindRateLimited
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return KindTransientNetwork
		}
	}

	return KindUnknown
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx,
// network timeout) before full classification.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient returns true if the error classifies as a network-level or
// rate-limit failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	kind := Classify(err)
	return kind == KindTransientNetwork || kind == KindRateLimited
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
