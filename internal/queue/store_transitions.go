package queue

import (
	"context"
	"fmt"
	"time"

	"drafter/internal/services"
)

// TransitionPayload carries the optional fields applied with a status change.
type TransitionPayload struct {
	Progress      *float64
	Message       string
	Stage         string
	ProviderJobID string
	ErrorKind     string
	ErrorMessage  string
}

// casAttempts bounds the optimistic-concurrency retry loop. Contention on a
// single job is limited to one poller plus webhook deliveries, so collisions
// are rare and short-lived.
const casAttempts = 5

// Transition atomically moves a job to a new status. Illegal transitions
// fail with a state violation and leave the record unchanged.
func (s *Store) Transition(ctx context.Context, jobID string, next Status, payload TransitionPayload) (*Job, error) {
	job, applied, err := s.transition(ctx, jobID, next, payload, true)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, services.Wrap(services.ErrStateViolation, "queue", "transition",
			fmt.Sprintf("job %s: cannot apply %s", jobID, next), nil)
	}
	return job, nil
}

// ApplyUpdate funnels a poll or webhook status report into the state
// machine. Updates against a terminal job, illegal transitions, and reports
// whose progress is lower than already recorded are discarded as no-ops
// rather than errors; whichever source arrives first wins.
func (s *Store) ApplyUpdate(ctx context.Context, jobID string, next Status, payload TransitionPayload) (*Job, bool, error) {
	return s.transition(ctx, jobID, next, payload, false)
}

func (s *Store) transition(ctx context.Context, jobID string, next Status, payload TransitionPayload, strict bool) (*Job, bool, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < casAttempts; attempt++ {
		job, err := s.Get(ctx, jobID)
		if err != nil {
			return nil, false, err
		}
		if job == nil {
			return nil, false, services.Wrap(services.ErrNotFound, "queue", "transition",
				fmt.Sprintf("job %s not found", jobID), nil)
		}

		if !job.Status.CanTransition(next) {
			return job, false, nil
		}
		progress := job.Progress
		if payload.Progress != nil {
			progress = *payload.Progress
		}
		if next == StatusSuccess {
			progress = 100
		}
		// Monotonicity: an equal-or-lower progress report on an unchanged
		// status is a stale duplicate.
		if !strict && next == job.Status && progress <= job.Progress {
			return job, false, nil
		}
		if progress < job.Progress && !next.IsTerminal() && next != StatusPending {
			if strict {
				return job, false, services.Wrap(services.ErrStateViolation, "queue", "transition",
					fmt.Sprintf("job %s: progress would decrease from %.0f to %.0f", jobID, job.Progress, progress), nil)
			}
			return job, false, nil
		}

		applied, err := s.writeTransition(ctx, job, next, progress, payload)
		if err != nil {
			return nil, false, err
		}
		if !applied {
			// Lost the CAS race; reload and re-evaluate.
			continue
		}
		updated, err := s.GetByRowID(ctx, job.ID)
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}
	return nil, false, services.Wrap(services.ErrTransient, "queue", "transition",
		fmt.Sprintf("job %s: contention exceeded %d attempts", jobID, casAttempts), nil)
}

func (s *Store) writeTransition(ctx context.Context, job *Job, next Status, progress float64, payload TransitionPayload) (bool, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	startedAt := nullableTime(job.StartedAt)
	if next == StatusInProgress && job.StartedAt == nil {
		startedAt = timestamp
	}
	completedAt := nullableTime(job.CompletedAt)
	if next.IsTerminal() {
		completedAt = timestamp
	}

	message := job.ProgressMessage
	if payload.Message != "" {
		message = payload.Message
	}
	stage := job.Stage
	if payload.Stage != "" {
		stage = payload.Stage
	}
	providerJobID := job.ProviderJobID
	if payload.ProviderJobID != "" {
		providerJobID = payload.ProviderJobID
	}
	errorKind := job.ErrorKind
	errorMessage := job.ErrorMessage
	if payload.ErrorKind != "" || payload.ErrorMessage != "" {
		errorKind = payload.ErrorKind
		errorMessage = payload.ErrorMessage
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE translation_jobs
         SET status = ?, progress = ?, progress_message = ?, stage = ?,
             provider_job_id = ?, error_kind = ?, error_message = ?,
             started_at = ?, completed_at = ?, updated_at = ?,
             sequence = sequence + 1,
             lease_owner = CASE WHEN ? THEN NULL ELSE lease_owner END,
             lease_expires_at = CASE WHEN ? THEN NULL ELSE lease_expires_at END
         WHERE id = ? AND sequence = ?`,
		next,
		progress,
		nullableString(message),
		nullableString(stage),
		nullableString(providerJobID),
		nullableString(errorKind),
		nullableString(errorMessage),
		startedAt,
		completedAt,
		timestamp,
		next.IsTerminal(),
		next.IsTerminal(),
		job.ID,
		job.Sequence,
	)
	if err != nil {
		return false, fmt.Errorf("write transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Cancel moves a pending or in-progress job to cancelled. Cancellation is a
// state, not an erasure; the record remains until purged externally.
func (s *Store) Cancel(ctx context.Context, jobID, reason string) (*Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "cancel",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status != StatusPending && job.Status != StatusInProgress {
		return nil, services.Wrap(services.ErrStateViolation, "queue", "cancel",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}
	if reason == "" {
		reason = "cancelled by request"
	}
	return s.Transition(ctx, jobID, StatusCancelled, TransitionPayload{
		Message:      reason,
		ErrorKind:    string(services.KindState),
		ErrorMessage: reason,
	})
}

// Retry moves a failed or timed-out job back to pending, resetting progress.
// The retry count increments unless resetRetryCount is set.
func (s *Store) Retry(ctx context.Context, jobID string, resetRetryCount bool) (*Job, error) {
	ctx = ensureContext(ctx)
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "retry",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status != StatusFailed && job.Status != StatusTimeout {
		return nil, services.Wrap(services.ErrNotRetryable, "queue", "retry",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}

	retryCount := job.RetryCount + 1
	if resetRetryCount {
		retryCount = 0
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE translation_jobs
         SET status = ?, progress = 0, progress_message = 'Retry requested',
             stage = NULL, retry_count = ?, error_kind = NULL, error_message = NULL,
             started_at = NULL, completed_at = NULL, next_poll_at = NULL,
             lease_owner = NULL, lease_expires_at = NULL,
             sequence = sequence + 1, updated_at = ?
         WHERE id = ? AND sequence = ?`,
		StatusPending,
		retryCount,
		timestamp,
		job.ID,
		job.Sequence,
	)
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrStateViolation, "queue", "retry",
			fmt.Sprintf("job %s changed concurrently", jobID), nil)
	}
	return s.GetByRowID(ctx, job.ID)
}

// IncrementRetryCount records a failure-triggered retry attempt without
// changing status. Used by the retry controller between provider attempts.
func (s *Store) IncrementRetryCount(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "increment retry",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`UPDATE translation_jobs SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		timestamp, job.ID,
	); err != nil {
		return nil, fmt.Errorf("increment retry count: %w", err)
	}
	return s.GetByRowID(ctx, job.ID)
}

// AttachManifest stores the fetched manifest on a succeeded job, replacing
// any previous snapshot wholesale.
func (s *Store) AttachManifest(ctx context.Context, jobID, manifestJSON string) error {
	return s.attachDocument(ctx, jobID, "manifest_json", manifestJSON)
}

// AttachMetadata stores the extracted metadata record, replacing any
// previous record wholesale.
func (s *Store) AttachMetadata(ctx context.Context, jobID, metadataJSON string) error {
	return s.attachDocument(ctx, jobID, "metadata_json", metadataJSON)
}

func (s *Store) attachDocument(ctx context.Context, jobID, column, payload string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "queue", "attach",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.Status != StatusSuccess {
		return services.Wrap(services.ErrNotReady, "queue", "attach",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := retryOnBusy(ensureContext(ctx), func() error {
		_, execErr := s.db.ExecContext(ctx,
			`UPDATE translation_jobs SET `+column+` = ?, updated_at = ? WHERE id = ?`,
			payload, timestamp, job.ID)
		return execErr
	}); err != nil {
		return fmt.Errorf("attach %s: %w", column, err)
	}
	return nil
}
