package worker

import (
	"context"
	"sync"

	"github.com/cuongbtq/jobrunner/internal/adapter"
	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// failureCall records one adapter.Failure invocation.
type failureCall struct {
	jobID string
	err   error
	opts  adapter.FailureOptions
}

// fakeAdapter is an in-memory adapter recording every call it receives.
type fakeAdapter struct {
	mu sync.Mutex

	pending []*jobs.Job

	claimErr   error
	successErr error
	failureErr error
	clearErr   error

	claimCount int
	claimQueue string
	successes  []string
	failures   []failureCall
	clearCount int
	clearQueue string
	cleared    int64
}

func (f *fakeAdapter) Claim(ctx context.Context, queue string) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.claimCount++
	f.claimQueue = queue

	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.pending) == 0 {
		return nil, nil
	}

	job := f.pending[0]
	f.pending = f.pending[1:]
	return job, nil
}

func (f *fakeAdapter) Success(ctx context.Context, job *jobs.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.successErr != nil {
		return f.successErr
	}
	f.successes = append(f.successes, job.ID)
	return nil
}

func (f *fakeAdapter) Failure(ctx context.Context, job *jobs.Job, jobErr error, opts adapter.FailureOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failureErr != nil {
		return f.failureErr
	}
	f.failures = append(f.failures, failureCall{jobID: job.ID, err: jobErr, opts: opts})
	return nil
}

func (f *fakeAdapter) Clear(ctx context.Context, queue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clearCount++
	f.clearQueue = queue

	if f.clearErr != nil {
		return 0, f.clearErr
	}
	return f.cleared, nil
}

func (f *fakeAdapter) snapshot() (claims int, successes []string, failures []failureCall) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.claimCount, append([]string(nil), f.successes...), append([]failureCall(nil), f.failures...)
}
