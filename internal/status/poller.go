package status

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"drafter/internal/config"
	"drafter/internal/dispatch"
	"drafter/internal/logging"
	"drafter/internal/provider"
	"drafter/internal/queue"
	"drafter/internal/retry"
	"drafter/internal/services"
)

// statusFetcher is the provider surface the poller needs.
type statusFetcher interface {
	FetchStatus(ctx context.Context, urn string) (*provider.StatusReport, error)
}

// Hooks receive applied transitions from either status channel.
type Hooks struct {
	Updated func(ctx context.Context, job *queue.Job)
}

func (h Hooks) updated(ctx context.Context, job *queue.Job) {
	if h.Updated != nil {
		h.Updated(ctx, job)
	}
}

// Poller drives translation status checks. Deadlines live in a min-heap;
// due jobs are serviced by a bounded pool of workers, each holding the
// job's lease for the duration of the poll.
type Poller struct {
	cfg        *config.Config
	store      *queue.Store
	client     statusFetcher
	controller *retry.Controller
	hooks      Hooks
	logger     *slog.Logger
	owner      string

	mu      sync.Mutex
	heap    pollHeap
	entries map[string]*pollEntry
	wake    chan struct{}

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPoller(cfg *config.Config, store *queue.Store, client statusFetcher, controller *retry.Controller, hooks Hooks, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Translation.MaxConcurrentPolls
	if workers <= 0 {
		workers = 1
	}
	return &Poller{
		cfg:        cfg,
		store:      store,
		client:     client,
		controller: controller,
		hooks:      hooks,
		logger:     logging.NewComponentLogger(logger, "poller"),
		owner:      "poller-" + uuid.NewString(),
		entries:    make(map[string]*pollEntry),
		wake:       make(chan struct{}, 1),
		sem:        make(chan struct{}, workers),
	}
}

// Schedule registers a poll deadline for a job. When the job is already
// scheduled the earlier deadline wins.
func (p *Poller) Schedule(jobID string, at time.Time) {
	p.mu.Lock()
	if entry, ok := p.entries[jobID]; ok {
		if at.Before(entry.at) {
			entry.at = at
			heap.Fix(&p.heap, entry.index)
		}
		p.mu.Unlock()
		p.signal()
		return
	}
	entry := &pollEntry{jobID: jobID, at: at}
	p.entries[jobID] = entry
	heap.Push(&p.heap, entry)
	p.mu.Unlock()
	p.signal()
}

// Wake pulls a job's deadline forward to now, used after a webhook
// delivery short-circuits the backoff interval.
func (p *Poller) Wake(jobID string) {
	p.Schedule(jobID, time.Now().UTC())
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run services the deadline heap until the context is cancelled. In-flight
// polls are drained before it returns.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.rehydrate(ctx); err != nil {
		return err
	}

	for {
		var fire <-chan time.Time
		var timer *time.Timer
		if next, ok := p.peek(); ok {
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			p.wg.Wait()
			return nil
		case <-p.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			for _, jobID := range p.popDue(time.Now().UTC()) {
				p.dispatch(ctx, jobID)
			}
		}
	}
}

// rehydrate reloads deadlines for in-flight jobs after a restart.
func (p *Poller) rehydrate(ctx context.Context) error {
	jobs, err := p.store.List(ctx, queue.StatusInProgress)
	if err != nil {
		return fmt.Errorf("rehydrate poller: %w", err)
	}
	now := time.Now().UTC()
	for _, job := range jobs {
		at := now
		if job.NextPollAt != nil && job.NextPollAt.After(now) {
			at = *job.NextPollAt
		}
		p.Schedule(job.JobID, at)
	}
	return nil
}

func (p *Poller) peek() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.heap) == 0 {
		return time.Time{}, false
	}
	return p.heap[0].at, true
}

func (p *Poller) popDue(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var due []string
	for len(p.heap) > 0 && !p.heap[0].at.After(now) {
		entry := heap.Pop(&p.heap).(*pollEntry)
		delete(p.entries, entry.jobID)
		due = append(due, entry.jobID)
	}
	return due
}

func (p *Poller) dispatch(ctx context.Context, jobID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return
		}
		p.poll(ctx, jobID)
	}()
}

func (p *Poller) poll(ctx context.Context, jobID string) {
	logger := logging.WithJobID(p.logger, jobID)

	job, err := p.store.Get(ctx, jobID)
	if err != nil {
		logger.Warn("poll lookup failed", logging.Args(logging.Error(err))...)
		return
	}
	if job == nil {
		// Purged externally; the heap entry was already consumed, so the
		// job simply stops being polled.
		logger.Debug("poll target no longer exists")
		return
	}
	if job.Status != queue.StatusInProgress {
		return
	}
	now := time.Now().UTC()

	if p.expireIfOverdue(ctx, job, now, logger) {
		return
	}

	ttl := time.Duration(p.cfg.Translation.LeaseGrace) * time.Second
	acquired, err := p.store.AcquireLease(ctx, jobID, p.owner, ttl)
	if err != nil {
		logger.Warn("lease acquire failed", logging.Args(logging.Error(err))...)
		return
	}
	if !acquired {
		// Another poller holds the job; check back shortly.
		p.Schedule(jobID, now.Add(time.Duration(p.cfg.Translation.PollIntervalMin)*time.Second))
		return
	}
	defer func() {
		if err := p.store.ReleaseLease(context.WithoutCancel(ctx), jobID, p.owner); err != nil {
			logger.Warn("lease release failed", logging.Args(logging.Error(err))...)
		}
	}()

	var report *provider.StatusReport
	err = p.controller.Do(ctx, "poll", func(ctx context.Context) error {
		fetched, err := p.client.FetchStatus(ctx, job.JobID)
		if err == nil {
			report = fetched
		}
		return err
	})
	if err != nil {
		p.handlePollError(ctx, job, now, err, logger)
		return
	}

	p.applyReport(ctx, job, report, now, logger)
}

// expireIfOverdue moves a job past its per-category ceiling to timeout.
func (p *Poller) expireIfOverdue(ctx context.Context, job *queue.Job, now time.Time, logger *slog.Logger) bool {
	ceiling, err := dispatch.TimeoutFor(p.cfg, job.Category)
	if err != nil || job.StartedAt == nil {
		return false
	}
	if now.Sub(*job.StartedAt) <= ceiling {
		return false
	}

	updated, applied, err := p.store.ApplyUpdate(ctx, job.JobID, queue.StatusTimeout, queue.TransitionPayload{
		Message:      fmt.Sprintf("translation exceeded %s ceiling", ceiling),
		ErrorKind:    string(services.KindTransient),
		ErrorMessage: fmt.Sprintf("no terminal status after %s", ceiling),
	})
	if err != nil {
		logger.Error("timeout transition failed", logging.Args(logging.Error(err))...)
		return true
	}
	if applied {
		logger.Warn("job timed out", logging.Args(logging.Duration("ceiling", ceiling))...)
		p.hooks.updated(ctx, updated)
	}
	return true
}

func (p *Poller) handlePollError(ctx context.Context, job *queue.Job, now time.Time, err error, logger *slog.Logger) {
	if services.IsRetryable(err) || errors.Is(err, services.ErrCircuitOpen) {
		// The translation keeps running remotely; the category ceiling
		// bounds how long transient poll failures can go on.
		delay := time.Duration(p.cfg.Workflow.ErrorRetryInterval) * time.Second
		if errors.Is(err, services.ErrCircuitOpen) {
			delay = time.Duration(p.cfg.Translation.CircuitCooldown) * time.Second
		}
		logger.Warn("status poll failed", logging.Args(
			logging.Error(err),
			logging.Duration("retry_in", delay),
		)...)
		if err := p.store.RecordPoll(ctx, job.JobID, now, now.Add(delay)); err != nil {
			logger.Warn("record poll failed", logging.Args(logging.Error(err))...)
		}
		p.Schedule(job.JobID, now.Add(delay))
		return
	}

	updated, applied, terr := p.store.ApplyUpdate(ctx, job.JobID, queue.StatusFailed, queue.TransitionPayload{
		Message:      "status poll failed permanently",
		ErrorKind:    string(services.Classify(err)),
		ErrorMessage: err.Error(),
	})
	if terr != nil {
		logger.Error("failure transition failed", logging.Args(logging.Error(terr))...)
		return
	}
	if applied {
		logger.Error("job failed", logging.Args(logging.Error(err))...)
		p.hooks.updated(ctx, updated)
	}
}

func (p *Poller) applyReport(ctx context.Context, job *queue.Job, report *provider.StatusReport, now time.Time, logger *slog.Logger) {
	target := queue.StatusInProgress
	payload := queue.TransitionPayload{
		Message: report.Message,
		Stage:   report.Stage,
	}
	switch report.State {
	case provider.StateSuccess:
		target = queue.StatusSuccess
	case provider.StateFailed:
		target = queue.StatusFailed
		payload.ErrorKind = string(services.KindRejected)
		payload.ErrorMessage = report.Message
	case provider.StateTimeout:
		target = queue.StatusTimeout
		payload.ErrorKind = string(services.KindTransient)
		payload.ErrorMessage = report.Message
	}
	progress := report.ProgressPercent()
	payload.Progress = &progress

	updated, applied, err := p.store.ApplyUpdate(ctx, job.JobID, target, payload)
	if err != nil {
		logger.Error("status transition failed", logging.Args(logging.Error(err))...)
		return
	}
	if applied {
		logger.Info("status updated", logging.Args(
			logging.String(logging.FieldStatus, string(updated.Status)),
			logging.Float64(logging.FieldProgress, updated.Progress),
		)...)
		p.hooks.updated(ctx, updated)
	}
	if updated != nil && !updated.Status.IsTerminal() {
		start := job.CreatedAt
		if job.StartedAt != nil {
			start = *job.StartedAt
		}
		interval := NextInterval(p.cfg, now.Sub(start))
		if err := p.store.RecordPoll(ctx, job.JobID, now, now.Add(interval)); err != nil {
			logger.Warn("record poll failed", logging.Args(logging.Error(err))...)
		}
		p.Schedule(job.JobID, now.Add(interval))
	}
}
