package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
	"github.com/cuongbtq/jobrunner/shared/logger"
)

const (
	// DefaultMaxAttempts is the number of executions a job gets before it
	// is considered terminally failed.
	DefaultMaxAttempts = 25

	// DefaultDeleteFailedJobs keeps terminally failed jobs in the store for
	// inspection rather than deleting them.
	DefaultDeleteFailedJobs = false
)

// ExecutorOptions holds everything an Executor needs for one execution.
type ExecutorOptions struct {
	Adapter          adapter.Adapter
	Registry         *jobs.Registry
	Job              *jobs.Job
	Logger           *slog.Logger
	MaxAttempts      int
	DeleteFailedJobs bool
}

// Executor performs exactly one claimed job and reports its outcome.
// One instance is created per job and discarded afterwards.
type Executor struct {
	adapter          adapter.Adapter
	registry         *jobs.Registry
	job              *jobs.Job
	logger           *slog.Logger
	maxAttempts      int
	deleteFailedJobs bool
}

// NewExecutor validates the options and builds an executor for a single job.
func NewExecutor(opts *ExecutorOptions) (*Executor, error) {
	if opts == nil || opts.Adapter == nil {
		return nil, jobs.ErrAdapterRequired
	}
	if opts.Job == nil {
		return nil, jobs.ErrJobRequired
	}

	registry := opts.Registry
	if registry == nil {
		registry = jobs.NewRegistry()
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewDefault().Logger
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Executor{
		adapter:          opts.Adapter,
		registry:         registry,
		job:              opts.Job,
		logger:           log,
		maxAttempts:      maxAttempts,
		deleteFailedJobs: opts.DeleteFailedJobs,
	}, nil
}

// Perform runs the job and reports exactly one outcome to the adapter.
// Job-level errors (descriptor parsing, handler resolution, handler
// execution) are contained here: they are logged, routed through the
// adapter's failure path, and never returned to the caller. The returned
// error is non-nil only when reporting the outcome itself fails.
func (e *Executor) Perform(ctx context.Context) error {
	e.logger.Info("Running job",
		slog.String("job_id", e.job.ID),
		slog.String("queue", e.job.Queue),
		slog.Int("attempts", e.job.Attempts),
	)

	jobErr := e.execute(ctx)
	if jobErr == nil {
		e.logger.Info("Job completed successfully",
			slog.String("job_id", e.job.ID),
		)

		if err := e.adapter.Success(ctx, e.job); err != nil {
			return fmt.Errorf("failed to record job success: %w", err)
		}
		return nil
	}

	e.logger.Error("Job failed",
		slog.String("job_id", e.job.ID),
		slog.Int("attempts", e.job.Attempts),
		slog.Any("error", jobErr),
	)

	opts := adapter.FailureOptions{
		MaxAttempts:      e.maxAttempts,
		DeleteFailedJobs: e.deleteFailedJobs,
	}
	if err := e.adapter.Failure(ctx, e.job, jobErr, opts); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// execute decodes the descriptor, resolves the handler, and invokes it.
func (e *Executor) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	desc, err := jobs.ParseDescriptor(e.job.Handler)
	if err != nil {
		return err
	}

	factory, err := e.registry.Lookup(desc.Handler)
	if err != nil {
		return err
	}

	handler := factory()
	if handler == nil {
		return jobs.NewUnknownHandlerError(desc.Handler, fmt.Errorf("factory returned no handler"))
	}

	return handler.Perform(ctx, desc.Args)
}
