package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"drafter/internal/config"
	"drafter/internal/services"
)

// Store manages translation job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewJobParams describes a job submission.
type NewJobParams struct {
	JobID               string
	ReferenceCiphertext string
	OutputFormats       []string
	Quality             QualityTier
	Priority            Priority
	Category            string
}

// Create inserts a new job in pending state. It fails with
// DuplicateActiveJob when a non-terminal job already exists for the same
// reference (job id), enforcing at most one concurrent job per reference.
func (s *Store) Create(ctx context.Context, params NewJobParams) (*Job, error) {
	if strings.TrimSpace(params.JobID) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "job id is empty", nil)
	}
	if strings.TrimSpace(params.ReferenceCiphertext) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "reference ciphertext is empty", nil)
	}
	if len(params.OutputFormats) == 0 {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "no output formats requested", nil)
	}

	formats, err := json.Marshal(params.OutputFormats)
	if err != nil {
		return nil, fmt.Errorf("marshal output formats: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM translation_jobs WHERE job_id = ? AND status IN (?, ?)`,
		params.JobID, StatusPending, StatusInProgress,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if active > 0 {
		return nil, services.Wrap(services.ErrDuplicateActiveJob, "queue", "create",
			fmt.Sprintf("job %s already active", params.JobID), nil)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO translation_jobs (
            job_id, correlation_id, reference_ciphertext, output_formats,
            quality, priority, category, status, progress, retry_count,
            sequence, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		params.JobID,
		uuid.NewString(),
		params.ReferenceCiphertext,
		string(formats),
		params.Quality,
		params.Priority,
		params.Category,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}

	return s.GetByRowID(ctx, id)
}

// GetByRowID fetches a job by database row identifier.
func (s *Store) GetByRowID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM translation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Get fetches the most recent job for an external job id.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs WHERE job_id = ? ORDER BY id DESC LIMIT 1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM translation_jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextPending returns the highest-priority oldest pending job for dispatch.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM translation_jobs WHERE status = ?
        ORDER BY CASE priority
            WHEN 'urgent' THEN 0
            WHEN 'high' THEN 1
            WHEN 'normal' THEN 2
            ELSE 3
        END, created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, StatusPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// PollDue returns in-progress jobs whose next poll deadline has elapsed,
// oldest deadline first, excluding jobs under a live lease.
func (s *Store) PollDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 1
	}
	cutoff := now.UTC().Format(time.RFC3339Nano)
	query := `SELECT ` + jobColumns + ` FROM translation_jobs
        WHERE status = ? AND (next_poll_at IS NULL OR next_poll_at <= ?)
          AND (lease_owner IS NULL OR lease_expires_at < ?)
        ORDER BY next_poll_at LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, StatusInProgress, cutoff, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query poll due: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Health returns aggregated job counts.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM translation_jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("query health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending = count
		case StatusInProgress:
			summary.InProgress = count
		case StatusSuccess:
			summary.Succeeded = count
		case StatusFailed:
			summary.Failed = count
		case StatusTimeout:
			summary.TimedOut = count
		case StatusCancelled:
			summary.Cancelled = count
		}
	}
	return summary, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
