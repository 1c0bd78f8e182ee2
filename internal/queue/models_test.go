package queue_test

import (
	"context"
	"math/rand"
	"testing"

	"drafter/internal/queue"
	"drafter/internal/testsupport"
)

func TestParseStatus(t *testing.T) {
	for _, status := range queue.AllStatuses() {
		parsed, ok := queue.ParseStatus(" " + string(status) + " ")
		if !ok || parsed != status {
			t.Fatalf("ParseStatus(%q) = %q, %v", status, parsed, ok)
		}
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestStateMachineShape(t *testing.T) {
	cases := []struct {
		from    queue.Status
		to      queue.Status
		allowed bool
	}{
		{queue.StatusPending, queue.StatusInProgress, true},
		{queue.StatusPending, queue.StatusCancelled, true},
		{queue.StatusInProgress, queue.StatusSuccess, true},
		{queue.StatusInProgress, queue.StatusTimeout, true},
		{queue.StatusFailed, queue.StatusPending, true},
		{queue.StatusTimeout, queue.StatusPending, true},
		{queue.StatusSuccess, queue.StatusInProgress, false},
		{queue.StatusCancelled, queue.StatusPending, false},
		{queue.StatusSuccess, queue.StatusPending, false},
		{queue.StatusPending, queue.StatusSuccess, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

// TestProgressMonotoneUnderShuffledUpdates feeds a shuffled mix of poll and
// webhook style reports into the registry and asserts recorded progress
// never decreases while the job is active.
func TestProgressMonotoneUnderShuffledUpdates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "bucket/shuffled.rvt")
	testsupport.MustTransition(t, store, job.JobID, queue.StatusInProgress, queue.TransitionPayload{})

	rng := rand.New(rand.NewSource(42))
	reports := []float64{5, 10, 20, 25, 40, 55, 60, 70, 85, 95}
	rng.Shuffle(len(reports), func(i, j int) {
		reports[i], reports[j] = reports[j], reports[i]
	})

	last := 0.0
	for _, progress := range reports {
		_, _, err := store.ApplyUpdate(ctx, job.JobID, queue.StatusInProgress, queue.TransitionPayload{
			Progress: testsupport.Progress(progress),
		})
		if err != nil {
			t.Fatalf("ApplyUpdate(%.0f): %v", progress, err)
		}
		current, err := store.Get(ctx, job.JobID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if current.Progress < last {
			t.Fatalf("progress decreased from %.0f to %.0f", last, current.Progress)
		}
		last = current.Progress
	}

	final, err := store.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Progress != 95 {
		t.Fatalf("expected high-water progress 95, got %.0f", final.Progress)
	}
}
