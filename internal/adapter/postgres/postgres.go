package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// Adapter stores jobs in a PostgreSQL table. Claim exclusivity across
// concurrent workers comes from FOR UPDATE SKIP LOCKED row selection
// combined with the locked_at/locked_by columns.
type Adapter struct {
	db         *sqlx.DB
	logger     *slog.Logger
	workerName string
}

// New creates a Postgres-backed adapter. workerName is recorded as
// locked_by on every claim for operational visibility.
func New(db *sqlx.DB, logger *slog.Logger, workerName string) *Adapter {
	return &Adapter{
		db:         db,
		logger:     logger,
		workerName: workerName,
	}
}

// Claim locks and returns the next runnable job, or nil when none is due.
func (a *Adapter) Claim(ctx context.Context, queue string) (*jobs.Job, error) {
	query := `
		UPDATE jobs
		SET locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE run_at <= NOW()
			  AND locked_at IS NULL
			  AND failed_at IS NULL
			  AND ($2 = '' OR queue = $2)
			ORDER BY run_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, handler, attempts, COALESCE(last_error, ''), run_at
	`

	var job jobs.Job
	err := a.db.QueryRowContext(ctx, query, a.workerName, queue).Scan(
		&job.ID,
		&job.Queue,
		&job.Handler,
		&job.Attempts,
		&job.LastError,
		&job.RunAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	a.logger.Debug("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("queue", job.Queue),
		slog.String("locked_by", a.workerName),
	)

	return &job, nil
}

// Success deletes the completed job row.
func (a *Adapter) Success(ctx context.Context, job *jobs.Job) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to delete completed job: %w", err)
	}

	a.logger.Debug("Job removed after successful run",
		slog.String("job_id", job.ID),
	)
	return nil
}

// Failure records a failed execution. Jobs with attempts left are unlocked
// and rescheduled with a retry delay; exhausted jobs are deleted or marked
// failed according to opts.
func (a *Adapter) Failure(ctx context.Context, job *jobs.Job, jobErr error, opts adapter.FailureOptions) error {
	attempts := job.Attempts + 1

	if attempts < opts.MaxAttempts {
		delay := adapter.RetryDelay(attempts)

		query := `
			UPDATE jobs
			SET attempts = $2,
			    run_at = NOW() + $3 * INTERVAL '1 second',
			    last_error = $4,
			    locked_at = NULL,
			    locked_by = NULL,
			    updated_at = NOW()
			WHERE id = $1
		`
		if _, err := a.db.ExecContext(ctx, query, job.ID, attempts, delay.Seconds(), jobErr.Error()); err != nil {
			return fmt.Errorf("failed to reschedule job: %w", err)
		}

		a.logger.Info("Job rescheduled for retry",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", opts.MaxAttempts),
			slog.Duration("retry_delay", delay),
		)
		return nil
	}

	if opts.DeleteFailedJobs {
		if _, err := a.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, job.ID); err != nil {
			return fmt.Errorf("failed to delete failed job: %w", err)
		}

		a.logger.Warn("Job deleted after exhausting attempts",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
		)
		return nil
	}

	query := `
		UPDATE jobs
		SET attempts = $2,
		    failed_at = NOW(),
		    last_error = $3,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := a.db.ExecContext(ctx, query, job.ID, attempts, jobErr.Error()); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	a.logger.Warn("Job marked failed after exhausting attempts",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
	)
	return nil
}

// Clear deletes all jobs, scoped to queue when non-empty.
func (a *Adapter) Clear(ctx context.Context, queue string) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM jobs WHERE ($1 = '' OR queue = $1)`, queue)
	if err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared jobs: %w", err)
	}

	return removed, nil
}

// Enqueue inserts a new pending job and returns its generated id. Used by
// the enqueue API, not by the worker itself.
func (a *Adapter) Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error) {
	handler, err := desc.Encode()
	if err != nil {
		return "", err
	}

	if runAt.IsZero() {
		runAt = time.Now()
	}

	id := uuid.New().String()
	query := `
		INSERT INTO jobs (id, queue, handler, attempts, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
	`
	if _, err := a.db.ExecContext(ctx, query, id, queue, handler, runAt); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	a.logger.Info("Job enqueued",
		slog.String("job_id", id),
		slog.String("queue", queue),
		slog.String("handler", desc.Handler),
	)

	return id, nil
}
