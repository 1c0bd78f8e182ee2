package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"drafter/internal/logging"
	"drafter/internal/queue"
	"drafter/internal/services"
)

// dispatchLane drains pending jobs into provider submissions.
func (m *Manager) dispatchLane(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			m.logger.Warn("next pending lookup failed", logging.Args(logging.Error(err))...)
			m.wait(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			m.wait(ctx, m.pollInterval)
			continue
		}

		m.submit(ctx, job)
	}
}

func (m *Manager) submit(ctx context.Context, job *queue.Job) {
	logger := logging.WithJobID(m.logger, job.JobID)

	var submitted *queue.Job
	err := m.controller.DoTracked(ctx, "submit", func(ctx context.Context) error {
		updated, err := m.dispatcher.Submit(ctx, job)
		if err == nil {
			submitted = updated
		}
		return err
	}, func(ctx context.Context) {
		// Each consumed retry lands on the row so an exhausted budget
		// leaves retry_count at the configured maximum.
		if _, err := m.store.IncrementRetryCount(ctx, job.JobID); err != nil {
			logger.Warn("retry count update failed", logging.Args(logging.Error(err))...)
		}
	})
	switch {
	case err == nil:
		m.notifier.JobUpdated(ctx, submitted)
		if submitted.NextPollAt != nil {
			m.poller.Schedule(submitted.JobID, *submitted.NextPollAt)
		}
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, services.ErrCircuitOpen):
		// Leave the job pending; the lane retries once the provider
		// circuit settles.
		logger.Warn("submission short-circuited", logging.Args(logging.Error(err))...)
		m.wait(ctx, time.Duration(m.cfg.Translation.CircuitCooldown)*time.Second)
	default:
		m.failSubmission(ctx, job, err, logger)
	}
}

func (m *Manager) failSubmission(ctx context.Context, job *queue.Job, cause error, logger *slog.Logger) {
	failed, err := m.store.Transition(ctx, job.JobID, queue.StatusFailed, queue.TransitionPayload{
		Message:      "submission failed",
		ErrorKind:    string(services.Classify(cause)),
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		logger.Error("failure transition failed", logging.Args(logging.Error(err))...)
		return
	}
	logger.Error("submission failed", logging.Args(
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "inspect provider credentials and input reference"),
	)...)
	m.notifier.JobUpdated(ctx, failed)
}

// sweepLane reclaims leases abandoned by crashed or stalled pollers.
func (m *Manager) sweepLane(ctx context.Context) {
	interval := time.Duration(m.cfg.Workflow.LeaseSweepInterval) * time.Second
	grace := time.Duration(m.cfg.Translation.LeaseGrace) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := m.store.ReclaimStaleLeases(ctx, grace)
			if err != nil {
				m.logger.Warn("lease sweep failed", logging.Args(logging.Error(err))...)
				continue
			}
			if reclaimed > 0 {
				m.logger.Info("reclaimed stale leases", logging.Args(logging.Int64("count", reclaimed))...)
			}
		}
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
