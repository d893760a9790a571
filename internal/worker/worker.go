package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
	"github.com/cuongbtq/jobrunner/shared/logger"
)

// DefaultSleepDelay is how long the worker idles after an empty claim
// before polling the adapter again.
const DefaultSleepDelay = 5 * time.Second

// Options holds worker configuration.
type Options struct {
	Adapter  adapter.Adapter
	Registry *jobs.Registry
	Logger   *slog.Logger

	// Name identifies this worker instance in logs and claim attribution.
	Name string

	// Queue restricts claims to a single queue; empty means any queue.
	Queue string

	// WorkOff processes every currently claimable job and then returns
	// instead of polling indefinitely.
	WorkOff bool

	// Clear removes all jobs (scoped to Queue) and returns without
	// claiming anything.
	Clear bool

	SleepDelay       time.Duration
	MaxAttempts      int
	DeleteFailedJobs bool
}

// Worker owns the claim loop: it repeatedly claims the next job from the
// adapter, executes it to completion through an Executor, and repeats until
// stopped or, in work-off mode, until the store is empty. Jobs are processed
// strictly one at a time; parallelism comes from running multiple worker
// processes against the same store.
type Worker struct {
	adapter          adapter.Adapter
	registry         *jobs.Registry
	logger           *slog.Logger
	queue            string
	workOff          bool
	clear            bool
	sleepDelay       time.Duration
	maxAttempts      int
	deleteFailedJobs bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a worker from the given options.
func New(opts *Options) (*Worker, error) {
	if opts == nil || opts.Adapter == nil {
		return nil, jobs.ErrAdapterRequired
	}

	registry := opts.Registry
	if registry == nil {
		registry = jobs.NewRegistry()
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewDefault().Logger
	}
	if opts.Name != "" {
		log = log.With(slog.String("worker", opts.Name))
	}

	sleepDelay := opts.SleepDelay
	if sleepDelay <= 0 {
		sleepDelay = DefaultSleepDelay
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Worker{
		adapter:          opts.Adapter,
		registry:         registry,
		logger:           log,
		queue:            opts.Queue,
		workOff:          opts.WorkOff,
		clear:            opts.Clear,
		sleepDelay:       sleepDelay,
		maxAttempts:      maxAttempts,
		deleteFailedJobs: opts.DeleteFailedJobs,
		stopChan:         make(chan struct{}),
	}, nil
}

// Run executes the claim loop until the queue is exhausted (work-off mode),
// Stop is called, or ctx is canceled. The stop signal is observed only
// between jobs: an in-flight job always runs to completion and has its
// outcome reported before Run returns.
//
// Claim errors and outcome-report errors abort the loop and propagate to
// the caller; job execution errors are contained inside the Executor and
// never surface here.
func (w *Worker) Run(ctx context.Context) error {
	if w.clear {
		removed, err := w.adapter.Clear(ctx, w.queue)
		if err != nil {
			return fmt.Errorf("failed to clear jobs: %w", err)
		}

		w.logger.Info("Cleared jobs",
			slog.Int64("removed", removed),
			slog.String("queue", w.queue),
		)
		return nil
	}

	w.logger.Info("Worker started",
		slog.String("queue", w.queue),
		slog.Bool("work_off", w.workOff),
		slog.Duration("sleep_delay", w.sleepDelay),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker stopped, exiting claim loop")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.adapter.Claim(ctx, w.queue)
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}

		if job == nil {
			if w.workOff {
				w.logger.Info("No more jobs available, exiting")
				return nil
			}

			select {
			case <-w.stopChan:
				w.logger.Info("Worker stopped while idle")
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.sleepDelay):
			}
			continue
		}

		executor, err := NewExecutor(&ExecutorOptions{
			Adapter:          w.adapter,
			Registry:         w.registry,
			Job:              job,
			Logger:           w.logger,
			MaxAttempts:      w.maxAttempts,
			DeleteFailedJobs: w.deleteFailedJobs,
		})
		if err != nil {
			return fmt.Errorf("failed to build executor: %w", err)
		}

		if err := executor.Perform(ctx); err != nil {
			return err
		}
	}
}

// Stop requests a graceful drain. The current job, if any, runs to
// completion; no further job is claimed. Safe to call more than once and
// from any goroutine.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}
