package amqpq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
	"github.com/cuongbtq/jobrunner/shared/rabbitmq"
)

// Adapter stores jobs as persistent messages on a RabbitMQ queue. Claims
// pull one message at a time with basic.get; exclusivity comes from the
// broker delivering each message to at most one consumer until it is
// acked or returned. Retries are immediate republishes with an incremented
// attempt count; the broker offers no scheduled redelivery.
type Adapter struct {
	client *rabbitmq.Client
	logger *slog.Logger

	// delivery tags of claimed messages, keyed by job id, so Success and
	// Failure can settle the exact message their job arrived on
	mu   sync.Mutex
	tags map[string]uint64
}

// New creates an adapter bound to the client's configured queue.
func New(client *rabbitmq.Client, logger *slog.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: logger,
		tags:   make(map[string]uint64),
	}
}

// checkQueue rejects queue names other than the one the client is bound
// to; a RabbitMQ adapter serves exactly one queue.
func (a *Adapter) checkQueue(queue string) error {
	if queue != "" && queue != a.client.QueueName() {
		return fmt.Errorf("adapter is bound to queue %q, cannot serve %q", a.client.QueueName(), queue)
	}
	return nil
}

// Claim pulls the next message off the queue, or returns nil when empty.
// Malformed messages are rejected without requeue (dead-lettered per
// broker policy) and reported as an empty claim.
func (a *Adapter) Claim(ctx context.Context, queue string) (*jobs.Job, error) {
	if err := a.checkQueue(queue); err != nil {
		return nil, err
	}

	channel := a.client.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	delivery, ok, err := channel.Get(a.client.QueueName(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if !ok {
		return nil, nil
	}

	job, err := decodeJob(delivery.Body)
	if err != nil {
		a.logger.Error("Rejecting malformed job message",
			slog.Any("error", err),
			slog.String("body", string(delivery.Body)),
		)
		if nackErr := channel.Nack(delivery.DeliveryTag, false, false); nackErr != nil {
			a.logger.Error("Failed to reject malformed message",
				slog.Any("error", nackErr),
			)
		}
		return nil, nil
	}

	a.mu.Lock()
	a.tags[job.ID] = delivery.DeliveryTag
	a.mu.Unlock()

	a.logger.Debug("Job claimed",
		slog.String("job_id", job.ID),
		slog.Uint64("delivery_tag", delivery.DeliveryTag),
	)

	return job, nil
}

func (a *Adapter) takeTag(jobID string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tag, ok := a.tags[jobID]
	if !ok {
		return 0, fmt.Errorf("job %s was not claimed by this adapter", jobID)
	}
	delete(a.tags, jobID)
	return tag, nil
}

// Success acks the message the job arrived on.
func (a *Adapter) Success(ctx context.Context, job *jobs.Job) error {
	tag, err := a.takeTag(job.ID)
	if err != nil {
		return err
	}

	channel := a.client.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Ack(tag, false); err != nil {
		return fmt.Errorf("failed to ack completed job: %w", err)
	}

	a.logger.Debug("Job acked after successful run",
		slog.String("job_id", job.ID),
	)
	return nil
}

// Failure settles the claimed message. Jobs with attempts left are
// republished with an incremented count and the original is acked;
// exhausted jobs are acked away (DeleteFailedJobs) or rejected without
// requeue so broker dead-letter policy can retain them.
func (a *Adapter) Failure(ctx context.Context, job *jobs.Job, jobErr error, opts adapter.FailureOptions) error {
	tag, err := a.takeTag(job.ID)
	if err != nil {
		return err
	}

	channel := a.client.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is nil")
	}

	attempts := job.Attempts + 1

	if attempts < opts.MaxAttempts {
		retry := *job
		retry.Attempts = attempts
		retry.LastError = jobErr.Error()

		body, err := encodeJob(&retry)
		if err != nil {
			return err
		}

		if err := a.client.Publish(ctx, body, "application/json"); err != nil {
			return fmt.Errorf("failed to requeue job: %w", err)
		}
		if err := channel.Ack(tag, false); err != nil {
			return fmt.Errorf("failed to ack requeued job: %w", err)
		}

		a.logger.Info("Job requeued for retry",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", opts.MaxAttempts),
		)
		return nil
	}

	if opts.DeleteFailedJobs {
		if err := channel.Ack(tag, false); err != nil {
			return fmt.Errorf("failed to drop failed job: %w", err)
		}

		a.logger.Warn("Job dropped after exhausting attempts",
			slog.String("job_id", job.ID),
			slog.Int("attempts", attempts),
		)
		return nil
	}

	if err := channel.Nack(tag, false, false); err != nil {
		return fmt.Errorf("failed to reject failed job: %w", err)
	}

	a.logger.Warn("Job rejected after exhausting attempts",
		slog.String("job_id", job.ID),
		slog.Int("attempts", attempts),
	)
	return nil
}

// Clear purges the queue and reports how many messages were removed.
func (a *Adapter) Clear(ctx context.Context, queue string) (int64, error) {
	if err := a.checkQueue(queue); err != nil {
		return 0, err
	}

	channel := a.client.GetChannel()
	if channel == nil {
		return 0, fmt.Errorf("rabbitmq channel is nil")
	}

	purged, err := channel.QueuePurge(a.client.QueueName(), false)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", err)
	}

	return int64(purged), nil
}

// Enqueue publishes a new job message. runAt is accepted for interface
// symmetry with the other backends but the broker cannot delay delivery,
// so future run times are refused rather than silently ignored.
func (a *Adapter) Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error) {
	if err := a.checkQueue(queue); err != nil {
		return "", err
	}
	if time.Until(runAt) > 0 {
		return "", fmt.Errorf("rabbitmq backend does not support delayed jobs")
	}

	handler, err := desc.Encode()
	if err != nil {
		return "", err
	}

	job := &jobs.Job{
		ID:      uuid.New().String(),
		Queue:   a.client.QueueName(),
		Handler: handler,
	}

	body, err := encodeJob(job)
	if err != nil {
		return "", err
	}

	if err := a.client.Publish(ctx, body, "application/json"); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	a.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("handler", desc.Handler),
	)

	return job.ID, nil
}
