package status

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"drafter/internal/config"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/retry"
	"drafter/internal/services"
	"drafter/internal/testsupport"
)

type fakeFetcher struct {
	report *provider.StatusReport
	err    error
	calls  int
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, urn string) (*provider.StatusReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

type recorder struct {
	jobs []*queue.Job
}

func (r *recorder) hook(ctx context.Context, job *queue.Job) {
	r.jobs = append(r.jobs, job)
}

func newPoller(t *testing.T, cfg *config.Config, store *queue.Store, fetcher *fakeFetcher, rec *recorder) *Poller {
	t.Helper()
	return NewPoller(cfg, store, fetcher, retry.NewController(cfg, nil), Hooks{Updated: rec.hook}, nil)
}

func inProgressJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job := testsupport.NewJob(t, store, "bucket/model.rvt")
	return testsupport.MustTransition(t, store, job.JobID, queue.StatusInProgress, queue.TransitionPayload{
		ProviderJobID: "prov-1",
		Stage:         "translation",
	})
}

func TestPollAppliesProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{report: &provider.StatusReport{
		State:    provider.StateInProgress,
		Progress: "40% complete",
		Stage:    "geometry",
	}}
	p := newPoller(t, cfg, store, fetcher, rec)
	job := inProgressJob(t, store)

	p.poll(context.Background(), job.JobID)

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Progress != 40 {
		t.Fatalf("progress = %.0f, want 40", updated.Progress)
	}
	if updated.Stage != "geometry" {
		t.Fatalf("stage = %q", updated.Stage)
	}
	if updated.NextPollAt == nil {
		t.Fatal("expected a rescheduled poll deadline")
	}
	if updated.LeaseOwner != "" {
		t.Fatal("lease not released after poll")
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(rec.jobs))
	}
	if _, scheduled := p.entries[job.JobID]; !scheduled {
		t.Fatal("job missing from poll schedule")
	}
}

func TestPollCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{report: &provider.StatusReport{
		State:    provider.StateSuccess,
		Progress: "complete",
	}}
	p := newPoller(t, cfg, store, fetcher, rec)
	job := inProgressJob(t, store)

	p.poll(context.Background(), job.JobID)

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusSuccess {
		t.Fatalf("status = %s, want success", updated.Status)
	}
	if updated.Progress != 100 {
		t.Fatalf("progress = %.0f, want 100", updated.Progress)
	}
	if updated.CompletedAt == nil {
		t.Fatal("missing completion timestamp")
	}
	// Terminal jobs are not rescheduled.
	if _, scheduled := p.entries[job.JobID]; scheduled {
		t.Fatal("terminal job still scheduled")
	}
}

func TestPollDiscardsRegression(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{report: &provider.StatusReport{
		State:    provider.StateInProgress,
		Progress: "40% complete",
	}}
	p := newPoller(t, cfg, store, fetcher, rec)
	job := inProgressJob(t, store)
	testsupport.MustTransition(t, store, job.JobID, queue.StatusInProgress, queue.TransitionPayload{
		Progress: testsupport.Progress(75),
	})

	p.poll(context.Background(), job.JobID)

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Progress != 75 {
		t.Fatalf("stale poll regressed progress to %.0f", updated.Progress)
	}
	if len(rec.jobs) != 0 {
		t.Fatal("no-op update fired the hook")
	}
}

func TestPollTransientFailureReschedules(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(0))
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{err: services.Wrap(services.ErrTransient, "provider", "status", "gateway timeout", nil)}
	p := newPoller(t, cfg, store, fetcher, rec)
	job := inProgressJob(t, store)

	p.poll(context.Background(), job.JobID)

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusInProgress {
		t.Fatalf("transient poll failure moved job to %s", updated.Status)
	}
	if _, scheduled := p.entries[job.JobID]; !scheduled {
		t.Fatal("job not rescheduled after transient failure")
	}
}

func TestPollMissingJobIsDropped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{report: &provider.StatusReport{State: provider.StateInProgress}}
	p := newPoller(t, cfg, store, fetcher, rec)

	// A job purged from the store after scheduling must fall out of
	// the poll loop instead of dereferencing a missing row.
	p.poll(context.Background(), "job-gone")

	if fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times for a missing job", fetcher.calls)
	}
	if len(rec.jobs) != 0 {
		t.Fatal("hook fired for a missing job")
	}
	if _, scheduled := p.entries["job-gone"]; scheduled {
		t.Fatal("missing job rescheduled")
	}
}

func TestPollPermanentFailureFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	fetcher := &fakeFetcher{err: services.Wrap(services.ErrRejected, "provider", "status", "translation discarded", nil)}
	p := newPoller(t, cfg, store, fetcher, rec)
	job := inProgressJob(t, store)

	p.poll(context.Background(), job.JobID)

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", updated.Status)
	}
	if updated.ErrorKind != string(services.KindRejected) {
		t.Fatalf("error kind = %q", updated.ErrorKind)
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(rec.jobs))
	}
}

func TestExpireIfOverdue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	p := newPoller(t, cfg, store, &fakeFetcher{}, rec)
	job := inProgressJob(t, store)

	started := time.Now().UTC().Add(-2 * time.Hour)
	overdue := *job
	overdue.StartedAt = &started

	if !p.expireIfOverdue(context.Background(), &overdue, time.Now().UTC(), p.logger) {
		t.Fatal("expected job past the authoring ceiling to expire")
	}
	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusTimeout {
		t.Fatalf("status = %s, want timeout", updated.Status)
	}
	if len(rec.jobs) != 1 {
		t.Fatal("timeout did not fire the hook")
	}
}

func TestScheduleKeepsEarlierDeadline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	p := newPoller(t, cfg, store, &fakeFetcher{}, &recorder{})

	later := time.Now().UTC().Add(time.Minute)
	earlier := time.Now().UTC().Add(time.Second)
	p.Schedule("job-a", later)
	p.Schedule("job-a", earlier)
	p.Schedule("job-a", later)

	if got := p.entries["job-a"].at; !got.Equal(earlier) {
		t.Fatalf("deadline = %v, want earlier %v", got, earlier)
	}
	if len(p.heap) != 1 {
		t.Fatalf("heap holds %d entries, want 1", len(p.heap))
	}
}

func TestNextIntervalGrowsTowardMax(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	min := time.Duration(cfg.Translation.PollIntervalMin) * time.Second
	max := time.Duration(cfg.Translation.PollIntervalMax) * time.Second

	early := NextInterval(cfg, 0)
	if early < time.Duration(float64(min)*0.8) || early > time.Duration(float64(min)*1.2) {
		t.Fatalf("fresh job interval %v outside jittered minimum", early)
	}

	late := NextInterval(cfg, 2*time.Hour)
	if late < time.Duration(float64(max)*0.8) || late > time.Duration(float64(max)*1.2) {
		t.Fatalf("long-running interval %v outside jittered maximum", late)
	}
}

func postWebhook(t *testing.T, w *Webhook, secret string, payload WebhookPayload, tamper func(*http.Request, []byte)) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/translation", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Signature([]byte(secret), body))
	if tamper != nil {
		tamper(req, body)
	}
	rr := httptest.NewRecorder()
	w.ServeHTTP(rr, req)
	return rr
}

func TestWebhookAppliesSignedUpdate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	p := newPoller(t, cfg, store, &fakeFetcher{}, rec)
	w := NewWebhook(cfg, store, p, Hooks{Updated: rec.hook}, nil)
	job := inProgressJob(t, store)

	rr := postWebhook(t, w, cfg.Provider.WebhookSecret, WebhookPayload{
		JobID:     job.JobID,
		Status:    "inprogress",
		Progress:  60,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Progress != 60 {
		t.Fatalf("progress = %.0f, want 60", updated.Progress)
	}
	if updated.NextPollAt == nil || updated.NextPollAt.After(time.Now().UTC().Add(time.Second)) {
		t.Fatal("webhook did not short-circuit the poll deadline")
	}
	if _, scheduled := p.entries[job.JobID]; !scheduled {
		t.Fatal("webhook did not wake the poller")
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(rec.jobs))
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := NewWebhook(cfg, store, nil, Hooks{}, nil)
	job := inProgressJob(t, store)

	rr := postWebhook(t, w, cfg.Provider.WebhookSecret, WebhookPayload{
		JobID:    job.JobID,
		Status:   "success",
		Progress: 100,
	}, func(req *http.Request, body []byte) {
		req.Header.Set(SignatureHeader, Signature([]byte("wrong-secret"), body))
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusInProgress {
		t.Fatalf("unsigned webhook mutated job to %s", updated.Status)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := NewWebhook(cfg, store, nil, Hooks{}, nil)

	rr := postWebhook(t, w, cfg.Provider.WebhookSecret, WebhookPayload{JobID: "x", Status: "success"},
		func(req *http.Request, _ []byte) {
			req.Header.Del(SignatureHeader)
		})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestWebhookUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := NewWebhook(cfg, store, nil, Hooks{}, nil)

	rr := postWebhook(t, w, cfg.Provider.WebhookSecret, WebhookPayload{
		JobID:    "no-such-job",
		Status:   "success",
		Progress: 100,
	}, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestWebhookStaleProgressIsNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recorder{}
	w := NewWebhook(cfg, store, nil, Hooks{Updated: rec.hook}, nil)
	job := inProgressJob(t, store)
	testsupport.MustTransition(t, store, job.JobID, queue.StatusInProgress, queue.TransitionPayload{
		Progress: testsupport.Progress(80),
	})

	rr := postWebhook(t, w, cfg.Provider.WebhookSecret, WebhookPayload{
		JobID:    job.JobID,
		Status:   "inprogress",
		Progress: 55,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["applied"] {
		t.Fatal("stale progress reported as applied")
	}
	updated, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Progress != 80 {
		t.Fatalf("progress regressed to %.0f", updated.Progress)
	}
	if len(rec.jobs) != 0 {
		t.Fatal("no-op webhook fired the hook")
	}
}
