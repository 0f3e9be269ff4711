package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":        ErrorQuota,
		"429 rate":                  ErrorRate,
		"request timeout":           ErrorTimeout,
		"context deadline exceeded": ErrorTimeout,
		"context too long":          ErrorContext,
		"service unavailable":       ErrorTransient,
		"bad request":               ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrorTimeout) || !Retryable(ErrorRate) || !Retryable(ErrorTransient) {
		t.Fatalf("expected timeout/rate/transient to be retryable")
	}
	if Retryable(ErrorQuota) || Retryable(ErrorPermanent) || Retryable(ErrorContext) {
		t.Fatalf("expected quota/permanent/context to be terminal")
	}
}
