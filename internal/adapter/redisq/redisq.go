package redisq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// moveDueBatch bounds how many delayed jobs are promoted per claim.
const moveDueBatch = 100

// Adapter stores jobs in Redis: a list per queue holding runnable job ids,
// a sorted set per queue holding delayed ids scored by their due time, and
// a hash per job holding its fields. Claim exclusivity comes from LPOP
// being atomic: an id leaves the runnable list exactly once.
type Adapter struct {
	rdb          *redis.Client
	logger       *slog.Logger
	defaultQueue string
}

// New creates a Redis-backed adapter. defaultQueue is used when operations
// are invoked without an explicit queue name.
func New(rdb *redis.Client, logger *slog.Logger, defaultQueue string) *Adapter {
	return &Adapter{
		rdb:          rdb,
		logger:       logger,
		defaultQueue: defaultQueue,
	}
}

func (a *Adapter) queueName(queue string) string {
	if queue == "" {
		return a.defaultQueue
	}
	return queue
}

func queueKey(queue string) string { return "jobs:queue:" + queue }
func delayKey(queue string) string { return "jobs:delay:" + queue }
func jobKey(id string) string      { return "jobs:job:" + id }

// Claim promotes any due delayed jobs, then pops the next runnable id and
// loads its record. Returns nil when the queue is empty.
func (a *Adapter) Claim(ctx context.Context, queue string) (*jobs.Job, error) {
	q := a.queueName(queue)

	if err := a.moveDue(ctx, q, time.Now().Unix()); err != nil {
		return nil, err
	}

	id, err := a.rdb.RPop(ctx, queueKey(q)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	fields, err := a.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		// Record expired or was cleared out from under the queue entry.
		a.logger.Warn("Claimed job id has no record, skipping",
			slog.String("job_id", id),
			slog.String("queue", q),
		)
		return nil, nil
	}

	attempts, _ := strconv.Atoi(fields["attempts"])

	return &jobs.Job{
		ID:        id,
		Queue:     q,
		Handler:   fields["handler"],
		Attempts:  attempts,
		LastError: fields["last_error"],
	}, nil
}

// moveDue promotes delayed jobs whose due time has passed onto the
// runnable list.
func (a *Adapter) moveDue(ctx context.Context, queue string, now int64) error {
	ids, err := a.rdb.ZRangeByScore(ctx, delayKey(queue), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now, 10),
		Offset: 0,
		Count:  moveDueBatch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	pipe := a.rdb.TxPipeline()
	for _, id := range ids {
		pipe.LPush(ctx, queueKey(queue), id)
		pipe.ZRem(ctx, delayKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to promote delayed jobs: %w", err)
	}

	return nil
}

// Success deletes the completed job record.
func (a *Adapter) Success(ctx context.Context, job *jobs.Job) error {
	if err := a.rdb.Del(ctx, jobKey(job.ID)).Err(); err != nil {
		return fmt.Errorf("failed to delete completed job: %w", err)
	}

	a.logger.Debug("Job removed after successful run",
		slog.String("job_id", job.ID),
	)
	return nil
}

// Failure records a failed execution: jobs with attempts left go onto the
// delay set with a retry backoff, exhausted jobs are deleted or kept in
// their hash with a failed_at marker.
func (a *Adapter) Failure(ctx context.Context, job *jobs.Job, jobErr error, opts adapter.FailureOptions) error {
	attempts := job.Attempts + 1

	if attempts < opts.MaxAttempts {
		delay := adapter.RetryDelay(attempts)
		due := time.Now().Add(delay).Unix()

		pipe := a.rdb.TxPipeline()
		pipe.HSet(ctx, jobKey(job.ID),
			"attempts", attempts,
			"last_error", jobErr.Error(),
		)
		pipe.ZAdd(ctx, delayKey(job.Queue), redis.Z{Score: float64(due), Member: job.ID})
		if _, err := pipe.Exec(ctx); err != nil {
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
		if err := a.rdb.Del(ctx, jobKey(job.ID)).Err(); err != nil {
			return fmt.Errorf("failed to delete failed job: %w", err)
		}

		a.logger.Warn("Job deleted after exhausting attempts",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
		)
		return nil
	}

	err := a.rdb.HSet(ctx, jobKey(job.ID),
		"attempts", attempts,
		"last_error", jobErr.Error(),
		"failed_at", time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	a.logger.Warn("Job marked failed after exhausting attempts",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
	)
	return nil
}

// Clear removes the queue's runnable list, delay set, and every job record
// reachable from them.
func (a *Adapter) Clear(ctx context.Context, queue string) (int64, error) {
	q := a.queueName(queue)

	runnable, err := a.rdb.LRange(ctx, queueKey(q), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list queued jobs: %w", err)
	}

	delayed, err := a.rdb.ZRange(ctx, delayKey(q), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list delayed jobs: %w", err)
	}

	pipe := a.rdb.TxPipeline()
	for _, id := range append(runnable, delayed...) {
		pipe.Del(ctx, jobKey(id))
	}
	pipe.Del(ctx, queueKey(q), delayKey(q))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}

	return int64(len(runnable) + len(delayed)), nil
}

// Enqueue stores a new job record and makes it claimable, immediately or
// at runAt when that lies in the future.
func (a *Adapter) Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error) {
	q := a.queueName(queue)

	handler, err := desc.Encode()
	if err != nil {
		return "", err
	}

	id := uuid.New().String()

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(id),
		"queue", q,
		"handler", handler,
		"attempts", 0,
	)
	if time.Until(runAt) > 0 {
		pipe.ZAdd(ctx, delayKey(q), redis.Z{Score: float64(runAt.Unix()), Member: id})
	} else {
		pipe.LPush(ctx, queueKey(q), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	a.logger.Info("Job enqueued",
		slog.String("job_id", id),
		slog.String("queue", q),
		slog.String("handler", desc.Handler),
	)

	return id, nil
}
