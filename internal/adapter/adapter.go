package adapter

import (
	"context"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// FailureOptions parameterize how an adapter records a failed execution.
// Attempt bookkeeping lives entirely inside the adapter: while the job has
// attempts left it is rescheduled with a retry delay, otherwise it is either
// deleted (DeleteFailedJobs) or retained in a failed state.
type FailureOptions struct {
	MaxAttempts      int
	DeleteFailedJobs bool
}

// Adapter is a pluggable backing store for jobs. Implementations must
// guarantee that at most one worker claims a given job at a time; the
// worker and executor rely on that exclusivity and never enforce it
// themselves.
type Adapter interface {
	// Claim atomically claims and returns the next eligible job, scoped to
	// queue when non-empty. Returns nil with no error when the store is empty.
	Claim(ctx context.Context, queue string) (*jobs.Job, error)

	// Success marks a job permanently complete.
	Success(ctx context.Context, job *jobs.Job) error

	// Failure records a failed execution and applies the retry/delete policy.
	Failure(ctx context.Context, job *jobs.Job, jobErr error, opts FailureOptions) error

	// Clear removes all jobs, scoped to queue when non-empty, and reports
	// how many were removed.
	Clear(ctx context.Context, queue string) (int64, error)
}
