package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage persists jobs in the queue table. Claiming uses SKIP LOCKED so
// multiple workers can poll the same table without serializing on row locks.
type PGStorage struct {
	pool    *pgxpool.Pool
	backoff Backoff
}

// NewPGStorage creates a Postgres-backed queue storage with the given retry
// policy.
func NewPGStorage(pool *pgxpool.Pool, backoff Backoff) *PGStorage {
	return &PGStorage{pool: pool, backoff: backoff}
}

func (s *PGStorage) CreateJob(ctx context.Context, job *Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO queue (id, task_name, message, status, failed_attempts, scheduled_for, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.TaskName, job.Message, job.Status, job.FailedAttempts,
		job.ScheduledFor, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Claim atomically transitions up to limit due pending jobs to processing
// and returns them. The inner select locks candidate rows with SKIP LOCKED,
// so a job is handed to exactly one worker even when several claim at once.
func (s *PGStorage) Claim(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE queue
		 SET status = $1, updated_at = now()
		 WHERE id IN (
		     SELECT id FROM queue
		     WHERE status = $2 AND scheduled_for <= now()
		     ORDER BY scheduled_for, created_at
		     FOR UPDATE SKIP LOCKED
		     LIMIT $3
		 )
		 RETURNING id, task_name, message, status, failed_attempts, scheduled_for, last_error, created_at, updated_at`,
		StatusProcessing, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := pgx.CollectRows(rows, scanJob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan claimed jobs: %w", err)
	}
	return jobs, nil
}

func (s *PGStorage) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		StatusDone, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMissing(ctx, jobID)
	}
	return nil
}

// Fail records the error and either reschedules the job with exponential
// backoff or, once the attempt limit is reached, parks it as failed. The
// whole transition is a single conditional update.
func (s *PGStorage) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue
		 SET failed_attempts = failed_attempts + 1,
		     last_error = $1,
		     status = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE $4 END,
		     scheduled_for = CASE WHEN failed_attempts + 1 >= $2 THEN scheduled_for
		         ELSE now() + make_interval(secs => LEAST($5::float8, $6::float8 * power(2, failed_attempts))) END,
		     updated_at = now()
		 WHERE id = $7 AND status = $8`,
		errMsg, s.backoff.MaxAttempts, StatusFailed, StatusPending,
		s.backoff.Cap.Seconds(), s.backoff.Base.Seconds(), jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMissing(ctx, jobID)
	}
	return nil
}

// ReleaseStale returns jobs stuck in processing longer than olderThan back
// to pending so work claimed by a crashed worker is retried.
func (s *PGStorage) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue
		 SET status = $1, updated_at = now()
		 WHERE status = $2 AND updated_at < now() - make_interval(secs => $3::float8)`,
		StatusPending, StatusProcessing, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteDone removes completed jobs older than the retention window.
func (s *PGStorage) DeleteDone(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue WHERE status = $1 AND updated_at < now() - make_interval(secs => $2::float8)`,
		StatusDone, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete done jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGStorage) classifyMissing(ctx context.Context, jobID uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to classify job: %w", err)
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrJobNotProcessing
}

func scanJob(row pgx.CollectableRow) (*Job, error) {
	var job Job
	err := row.Scan(&job.ID, &job.TaskName, &job.Message, &job.Status,
		&job.FailedAttempts, &job.ScheduledFor, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
