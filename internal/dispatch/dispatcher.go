package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/reference"
	"drafter/internal/services"
)

// translator is the provider surface the dispatcher needs.
type translator interface {
	Submit(ctx context.Context, req provider.SubmitRequest) (*provider.SubmitResponse, error)
}

// Dispatcher validates translation requests, persists them as pending
// jobs, and submits them to the conversion provider.
type Dispatcher struct {
	cfg    *config.Config
	store  *queue.Store
	refs   *reference.Manager
	client translator
	logger *slog.Logger
}

func New(cfg *config.Config, store *queue.Store, refs *reference.Manager, client translator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		store:  store,
		refs:   refs,
		client: client,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Request describes a translation submission from a collaborator.
type Request struct {
	// Reference is the plaintext input reference. It is encrypted before
	// it touches the queue.
	Reference     string
	OutputFormats []string
	Quality       string
	Priority      string
	Category      string
}

var defaultOutputFormats = []string{"svf", "thumbnail"}

// Enqueue validates the request and persists a new pending job. The
// reference is stored encrypted; the job id is the url-safe encoding of
// the reference so resubmissions of the same input collide on the
// duplicate-active check.
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) (*queue.Job, error) {
	if req.Reference == "" {
		return nil, services.Wrap(services.ErrValidation, "dispatch", "enqueue", "input reference is empty", nil)
	}
	if _, err := profileFor(req.Category); err != nil {
		return nil, err
	}

	quality := queue.QualityMedium
	if req.Quality != "" {
		parsed, ok := queue.ParseQuality(req.Quality)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "dispatch", "enqueue",
				fmt.Sprintf("unknown quality tier %q", req.Quality), nil)
		}
		quality = parsed
	}
	priority := queue.PriorityNormal
	if req.Priority != "" {
		parsed, ok := queue.ParsePriority(req.Priority)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "dispatch", "enqueue",
				fmt.Sprintf("unknown priority %q", req.Priority), nil)
		}
		priority = parsed
	}
	formats := req.OutputFormats
	if len(formats) == 0 {
		formats = defaultOutputFormats
	}

	ciphertext, err := d.refs.Encrypt(req.Reference)
	if err != nil {
		return nil, err
	}

	job, err := d.store.Create(ctx, queue.NewJobParams{
		JobID:               d.refs.Encode(req.Reference),
		ReferenceCiphertext: ciphertext,
		OutputFormats:       formats,
		Quality:             quality,
		Priority:            priority,
		Category:            normalizeCategory(req.Category),
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("job enqueued", logging.Args(
		logging.String(logging.FieldJobID, job.JobID),
		logging.String("category", job.Category),
		logging.String("priority", string(job.Priority)),
	)...)
	return job, nil
}

// Submit sends the job to the provider and moves it to inprogress with
// the provider's job id recorded. The job row is not mutated when the
// provider call fails; the caller decides whether to retry or fail the
// job based on the returned error.
func (d *Dispatcher) Submit(ctx context.Context, job *queue.Job) (*queue.Job, error) {
	profile, err := profileFor(job.Category)
	if err != nil {
		return nil, err
	}

	// Round-trip through the cipher so a corrupted row surfaces here
	// rather than as a provider rejection.
	if _, err := d.refs.Decrypt(job.ReferenceCiphertext); err != nil {
		return nil, err
	}

	resp, err := d.client.Submit(ctx, d.buildRequest(job, profile))
	if err != nil {
		// Keep the provider's transient/rejected classification intact.
		return nil, fmt.Errorf("dispatch: submit job %s: %w", job.JobID, err)
	}

	updated, err := d.store.Transition(ctx, job.JobID, queue.StatusInProgress, queue.TransitionPayload{
		ProviderJobID: resp.JobID,
		Message:       "translation submitted",
		Stage:         "translation",
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	interval := time.Duration(d.cfg.Translation.PollIntervalMin) * time.Second
	if err := d.store.RecordPoll(ctx, job.JobID, now, now.Add(interval)); err != nil {
		return nil, err
	}

	d.logger.Info("job submitted", logging.Args(
		logging.String(logging.FieldJobID, job.JobID),
		logging.String("provider_job_id", resp.JobID),
	)...)
	return updated, nil
}

func (d *Dispatcher) buildRequest(job *queue.Job, profile formatProfile) provider.SubmitRequest {
	outputs := make([]provider.OutputTarget, 0, len(job.OutputFormats))
	for _, format := range job.OutputFormats {
		target := provider.OutputTarget{Type: format}
		if format == "svf" || format == "svf2" {
			target.Views = profile.Views
		}
		outputs = append(outputs, target)
	}
	return provider.SubmitRequest{
		URN:               job.JobID,
		Outputs:           outputs,
		Quality:           string(job.Quality),
		ExtractionOptions: profile.ExtractionOptions,
		TimeoutSeconds:    profile.timeoutSeconds(d.cfg),
	}
}
