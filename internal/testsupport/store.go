package testsupport

import (
	"context"
	"encoding/base64"
	"testing"

	"drafter/internal/config"
	"drafter/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// JobIDFor derives the external job id for a raw reference the same way the
// dispatcher does.
func JobIDFor(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, raw string) *queue.Job {
	t.Helper()

	job, err := store.Create(context.Background(), queue.NewJobParams{
		JobID:               JobIDFor(raw),
		ReferenceCiphertext: "ciphertext-" + raw,
		OutputFormats:       []string{"svf", "thumbnail"},
		Quality:             queue.QualityMedium,
		Priority:            queue.PriorityNormal,
		Category:            "rvt",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// MustTransition applies a strict transition and fails the test on error.
func MustTransition(t testing.TB, store *queue.Store, jobID string, next queue.Status, payload queue.TransitionPayload) *queue.Job {
	t.Helper()

	job, err := store.Transition(context.Background(), jobID, next, payload)
	if err != nil {
		t.Fatalf("store.Transition(%s -> %s): %v", jobID, next, err)
	}
	return job
}

// Progress returns a pointer to a progress value for transition payloads.
func Progress(value float64) *float64 {
	return &value
}
