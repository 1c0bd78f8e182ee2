package services_test

import (
	"errors"
	"strings"
	"testing"

	"drafter/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "provider", "fetch status", "poll cycle", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to survive")
	}
	if !strings.Contains(err.Error(), "provider: fetch status: poll cycle") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind services.ErrorKind
	}{
		{services.Wrap(services.ErrValidation, "dispatch", "submit", "", nil), services.KindValidation},
		{services.Wrap(services.ErrTransient, "provider", "status", "", nil), services.KindTransient},
		{services.Wrap(services.ErrUnauthorized, "webhook", "verify", "", nil), services.KindAuth},
		{services.Wrap(services.ErrRejected, "dispatch", "submit", "", nil), services.KindRejected},
		{services.Wrap(services.ErrCircuitOpen, "retry", "execute", "", nil), services.KindCircuitOpen},
		{services.Wrap(services.ErrStateViolation, "queue", "transition", "", nil), services.KindState},
		{errors.New("plain"), services.KindInternal},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.kind {
			t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.kind)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if services.IsRetryable(services.Wrap(services.ErrValidation, "", "", "", nil)) {
		t.Fatal("validation errors must never be retryable")
	}
	if services.IsRetryable(services.Wrap(services.ErrCircuitOpen, "", "", "", nil)) {
		t.Fatal("circuit-open must not consume retry budget")
	}
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "", "", "", nil)) {
		t.Fatal("transient errors should be retryable")
	}
}
