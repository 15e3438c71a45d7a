package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestClassify_ExplicitKind(t *testing.T) {
	err := NewClassified(KindValidationFailed, errors.New("text not found in section"))
	if got := Classify(err); got != KindValidationFailed {
		t.Errorf("expected validation_failed, got %s", got)
	}

	wrapped := fmt.Errorf("pipeline: %w", err)
	if got := Classify(wrapped); got != KindValidationFailed {
		t.Errorf("expected validation_failed through wrap, got %s", got)
	}
}

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{429, KindRateLimited},
		{408, KindTransientNetwork},
		{500, KindTransientNetwork},
		{503, KindTransientNetwork},
		{401, KindConfigurationError},
		{403, KindConfigurationError},
		{400, KindInvalidResponse},
		{422, KindInvalidResponse},
		{200, KindUnknown},
	}
	for _, tt := range tests {
		err := NewClassifiedStatus(errors.New("api error"), tt.status)
		if got := Classify(err); got != tt.want {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.want, got)
		}
	}
}

func TestClassify_TransientErrorWrapper(t *testing.T) {
	if got := Classify(NewTransientError(errors.New("overload"), 503)); got != KindTransientNetwork {
		t.Errorf("expected transient_network, got %s", got)
	}
	if got := Classify(NewTransientError(errors.New("slow down"), 429)); got != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", got)
	}
}

func TestClassify_NetworkSignals(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != KindTransientNetwork {
		t.Errorf("deadline: expected transient_network, got %s", got)
	}
	if got := Classify(fmt.Errorf("dial: %w", syscall.ECONNRESET)); got != KindTransientNetwork {
		t.Errorf("econnreset: expected transient_network, got %s", got)
	}
	if got := Classify(errors.New("read tcp: i/o timeout")); got != KindTransientNetwork {
		t.Errorf("i/o timeout: expected transient_network, got %s", got)
	}
}

func TestClassify_RateLimitMessages(t *testing.T) {
	for _, msg := range []string{
		"429: Too Many Requests",
		"rate limit exceeded, retry later",
		"model is overloaded",
	} {
		if got := Classify(errors.New(msg)); got != KindRateLimited {
			t.Errorf("%q: expected rate_limited, got %s", msg, got)
		}
	}
}

func TestClassify_UnknownDefaultsRetriable(t *testing.T) {
	kind := Classify(errors.New("something odd happened"))
	if kind != KindUnknown {
		t.Fatalf("expected unknown, got %s", kind)
	}
	if !kind.Retriable() {
		t.Error("unknown errors should remain retriable")
	}
}

func TestPolicy_PerKind(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want Policy
	}{
		{KindTransientNetwork, PolicyRetryBackoff},
		{KindRateLimited, PolicyRetryLongerDelay},
		{KindInvalidResponse, PolicyRetryThenFail},
		{KindValidationFailed, PolicyFailFast},
		{KindConfigurationError, PolicyFailFast},
		{KindUnknown, PolicyRetryBackoff},
	}
	for _, tt := range tests {
		if got := tt.kind.Policy(); got != tt.want {
			t.Errorf("%s: expected policy %d, got %d", tt.kind, tt.want, got)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewTransientError(errors.New("x"), 502)) {
		t.Error("502 should be transient")
	}
	if IsTransient(NewClassified(KindConfigurationError, errors.New("missing api key"))) {
		t.Error("configuration errors are not transient")
	}
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d not transient", code)
		}
	}
}

func TestClassifiedError_Message(t *testing.T) {
	err := NewClassifiedStatus(errors.New("boom"), 429)
	want := "rate_limited (status 429): boom"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the inner error")
	}
}
