package queue

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease claims exclusive polling rights on a job. It succeeds only
// when no live lease exists, so at most one poller services a job at a time.
// Expired leases are claimable immediately; a crashed poller cannot starve
// a job past the lease duration.
func (s *Store) AcquireLease(ctx context.Context, jobID, owner string, ttl time.Duration) (bool, error) {
	if owner == "" || ttl <= 0 {
		return false, fmt.Errorf("lease requires owner and positive ttl")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE translation_jobs
         SET lease_owner = ?, lease_expires_at = ?, updated_at = ?
         WHERE job_id = ? AND status = ?
           AND (lease_owner IS NULL OR lease_expires_at < ?)`,
		owner,
		now.Add(ttl).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		jobID,
		StatusInProgress,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseLease releases a lease held by owner. Releasing a lease that was
// already reclaimed is a no-op.
func (s *Store) ReleaseLease(ctx context.Context, jobID, owner string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE translation_jobs
         SET lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE job_id = ? AND lease_owner = ?`,
		now, jobID, owner,
	); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// ReclaimStaleLeases clears leases whose expiry plus grace period has
// elapsed, returning the number of reclaimed jobs.
func (s *Store) ReclaimStaleLeases(ctx context.Context, grace time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-grace).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE translation_jobs
         SET lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE lease_owner IS NOT NULL AND lease_expires_at < ?`,
		now.Format(time.RFC3339Nano),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale leases: %w", err)
	}
	return res.RowsAffected()
}

// RecordPoll stores the poll bookkeeping after a poll cycle: the time the
// provider was asked and the next scheduled deadline.
func (s *Store) RecordPoll(ctx context.Context, jobID string, polledAt, nextPollAt time.Time) error {
	if _, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE translation_jobs
         SET last_polled_at = ?, next_poll_at = ?, updated_at = ?
         WHERE job_id = ? AND status = ?`,
		polledAt.UTC().Format(time.RFC3339Nano),
		nextPollAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		jobID,
		StatusInProgress,
	); err != nil {
		return fmt.Errorf("record poll: %w", err)
	}
	return nil
}

// ShortCircuitPoll advances a job's next poll deadline to now, used after a
// webhook delivery so the poller re-checks promptly instead of waiting out
// its backoff interval.
func (s *Store) ShortCircuitPoll(ctx context.Context, jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE translation_jobs SET next_poll_at = ?, updated_at = ? WHERE job_id = ? AND status = ?`,
		now, now, jobID, StatusInProgress,
	); err != nil {
		return fmt.Errorf("short-circuit poll: %w", err)
	}
	return nil
}
