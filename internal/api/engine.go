package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"drafter/internal/config"
	"drafter/internal/dispatch"
	"drafter/internal/logging"
	"drafter/internal/metadata"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/services"
	"drafter/internal/workflow"
)

// Engine is the collaborator-facing surface of the translation system.
type Engine struct {
	cfg     *config.Config
	store   *queue.Store
	manager *workflow.Manager
	logger  *slog.Logger
}

func NewEngine(cfg *config.Config, store *queue.Store, manager *workflow.Manager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		manager: manager,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
}

// StartTranslation validates and enqueues a new translation job.
func (e *Engine) StartTranslation(ctx context.Context, req dispatch.Request) (*queue.Job, error) {
	return e.manager.Dispatcher().Enqueue(ctx, req)
}

// StatusReport is the externally visible view of one job.
type StatusReport struct {
	JobID      string       `json:"jobId"`
	Status     queue.Status `json:"status"`
	Progress   float64      `json:"progress"`
	Message    string       `json:"message,omitempty"`
	Stage      string       `json:"stage,omitempty"`
	RetryCount int          `json:"retryCount"`
	ErrorKind  string       `json:"errorKind,omitempty"`
	// ETA extrapolates remaining time from the progress rate; nil when
	// the job is terminal or has made no measurable progress.
	ETA         *time.Duration `json:"eta,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// GetStatus reports a job's current state.
func (e *Engine) GetStatus(ctx context.Context, jobID string) (*StatusReport, error) {
	job, err := e.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		JobID:       job.JobID,
		Status:      job.Status,
		Progress:    job.Progress,
		Message:     job.ProgressMessage,
		Stage:       job.Stage,
		RetryCount:  job.RetryCount,
		ErrorKind:   job.ErrorKind,
		ETA:         estimateETA(job, time.Now().UTC()),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// estimateETA extrapolates linearly from progress made so far.
func estimateETA(job *queue.Job, now time.Time) *time.Duration {
	if job.Status != queue.StatusInProgress || job.StartedAt == nil || job.Progress <= 0 {
		return nil
	}
	elapsed := now.Sub(*job.StartedAt)
	if elapsed <= 0 {
		return nil
	}
	remaining := time.Duration(float64(elapsed) / job.Progress * (100 - job.Progress))
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// GetManifest returns the stored manifest for a successful job. With
// forceRefresh it re-fetches and replaces the stored copy first.
func (e *Engine) GetManifest(ctx context.Context, jobID string, forceRefresh bool) (*provider.Manifest, error) {
	job, err := e.requireSuccess(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if forceRefresh || job.ManifestJSON == "" {
		if job, err = e.refresh(ctx, job); err != nil {
			return nil, err
		}
	}

	var manifest provider.Manifest
	if err := json.Unmarshal([]byte(job.ManifestJSON), &manifest); err != nil {
		return nil, fmt.Errorf("decode stored manifest: %w", err)
	}
	return &manifest, nil
}

// GetMetadata returns the stored quality record for a successful job.
// With forceRefresh the record is recomputed wholesale.
func (e *Engine) GetMetadata(ctx context.Context, jobID string, forceRefresh bool) (*metadata.Record, error) {
	job, err := e.requireSuccess(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if forceRefresh || job.MetadataJSON == "" {
		if job, err = e.refresh(ctx, job); err != nil {
			return nil, err
		}
	}
	return metadata.Parse(job.MetadataJSON)
}

// Retry moves a failed or timed-out job back to pending.
func (e *Engine) Retry(ctx context.Context, jobID string, resetRetryCount bool) (*queue.Job, error) {
	return e.store.Retry(ctx, jobID, resetRetryCount)
}

// Cancel terminates a pending or in-progress job.
func (e *Engine) Cancel(ctx context.Context, jobID, reason string) (*queue.Job, error) {
	return e.store.Cancel(ctx, jobID, reason)
}

// Health summarizes the queue.
func (e *Engine) Health(ctx context.Context) (queue.HealthSummary, error) {
	return e.store.Health(ctx)
}

// List returns jobs filtered to the given statuses, or all jobs.
func (e *Engine) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return e.store.List(ctx, statuses...)
}

// WebhookHandler exposes the signed provider callback endpoint.
func (e *Engine) WebhookHandler() http.Handler {
	return e.manager.WebhookHandler()
}

// SignedReference mints an expiring signed token for a job's input
// reference, decrypting the stored ciphertext on the way.
func (e *Engine) SignedReference(ctx context.Context, jobID string) (string, error) {
	job, err := e.getJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	raw, err := e.manager.References().Decrypt(job.ReferenceCiphertext)
	if err != nil {
		return "", err
	}
	return e.manager.References().Sign(raw, 0), nil
}

// ResolveReference validates a signed token and returns the raw
// reference. Expired or tampered tokens fail with Unauthorized.
func (e *Engine) ResolveReference(signed string) (string, error) {
	raw, ok := e.manager.References().Verify(signed)
	if !ok {
		return "", services.Wrap(services.ErrUnauthorized, "api", "resolve reference", "signed token rejected", nil)
	}
	return raw, nil
}

func (e *Engine) getJob(ctx context.Context, jobID string) (*queue.Job, error) {
	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "get", fmt.Sprintf("job %s not found", jobID), nil)
	}
	return job, nil
}

func (e *Engine) requireSuccess(ctx context.Context, jobID string) (*queue.Job, error) {
	job, err := e.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != queue.StatusSuccess {
		return nil, services.Wrap(services.ErrNotReady, "api", "get",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}
	return job, nil
}

func (e *Engine) refresh(ctx context.Context, job *queue.Job) (*queue.Job, error) {
	if _, err := e.manager.Extractor().Extract(ctx, job); err != nil {
		return nil, err
	}
	return e.getJob(ctx, job.JobID)
}
