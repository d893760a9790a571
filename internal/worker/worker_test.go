package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

func queuedJob(id string) *jobs.Job {
	return &jobs.Job{
		ID:      id,
		Queue:   "default",
		Handler: `{"handler":"noop"}`,
	}
}

func noopRegistry(t *testing.T) *jobs.Registry {
	t.Helper()

	registry := jobs.NewRegistry()
	err := registry.Register("noop", func() jobs.Handler {
		return jobs.HandlerFunc(func(ctx context.Context, args []json.RawMessage) error {
			return nil
		})
	})
	require.NoError(t, err)

	return registry
}

func TestNew_RequiresAdapter(t *testing.T) {
	w, err := New(&Options{})
	assert.ErrorIs(t, err, jobs.ErrAdapterRequired)
	assert.Nil(t, w)

	w, err = New(nil)
	assert.ErrorIs(t, err, jobs.ErrAdapterRequired)
	assert.Nil(t, w)
}

func TestWorker_Run_WorkOff(t *testing.T) {
	store := &fakeAdapter{
		pending: []*jobs.Job{queuedJob("1"), queuedJob("2"), queuedJob("3")},
	}

	w, err := New(&Options{
		Adapter:  store,
		Registry: noopRegistry(t),
		WorkOff:  true,
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	claims, successes, failures := store.snapshot()
	// three jobs plus the empty claim that ends the loop
	assert.Equal(t, 4, claims)
	assert.Equal(t, []string{"1", "2", "3"}, successes)
	assert.Empty(t, failures)
}

func TestWorker_Run_WorkOff_FailedJobsReported(t *testing.T) {
	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register("noop", func() jobs.Handler {
		return jobs.HandlerFunc(func(ctx context.Context, args []json.RawMessage) error {
			return errors.New("handler broke")
		})
	}))

	store := &fakeAdapter{pending: []*jobs.Job{queuedJob("1")}}

	w, err := New(&Options{
		Adapter:     store,
		Registry:    registry,
		WorkOff:     true,
		MaxAttempts: 7,
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	_, successes, failures := store.snapshot()
	assert.Empty(t, successes)
	require.Len(t, failures, 1)
	assert.Equal(t, "1", failures[0].jobID)
	assert.Equal(t, 7, failures[0].opts.MaxAttempts)
}

func TestWorker_Run_Clear(t *testing.T) {
	store := &fakeAdapter{
		pending: []*jobs.Job{queuedJob("1")},
		cleared: 5,
	}

	w, err := New(&Options{
		Adapter: store,
		Clear:   true,
		Queue:   "mailers",
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 1, store.clearCount)
	assert.Equal(t, "mailers", store.clearQueue)
	assert.Equal(t, 0, store.claimCount)
	assert.Empty(t, store.successes)
}

func TestWorker_Run_ClaimQueueScope(t *testing.T) {
	store := &fakeAdapter{}

	w, err := New(&Options{
		Adapter: store,
		Queue:   "mailers",
		WorkOff: true,
	})
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, "mailers", store.claimQueue)
}

func TestWorker_Run_ClaimErrorPropagates(t *testing.T) {
	claimErr := errors.New("store unreachable")
	store := &fakeAdapter{claimErr: claimErr}

	w, err := New(&Options{Adapter: store})
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, claimErr)
}

func TestWorker_Run_StopWhileIdle(t *testing.T) {
	store := &fakeAdapter{}

	w, err := New(&Options{
		Adapter:    store,
		SleepDelay: time.Minute, // long enough that only Stop can end the wait
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		claims, _, _ := store.snapshot()
		return claims >= 1
	}, time.Second, 5*time.Millisecond)

	w.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop while idle")
	}
}

func TestWorker_Run_StopDrainsInFlightJob(t *testing.T) {
	started := make(chan struct{})
	resume := make(chan struct{})

	registry := jobs.NewRegistry()
	require.NoError(t, registry.Register("noop", func() jobs.Handler {
		return jobs.HandlerFunc(func(ctx context.Context, args []json.RawMessage) error {
			close(started)
			<-resume
			return nil
		})
	}))

	store := &fakeAdapter{pending: []*jobs.Job{queuedJob("1")}}

	w, err := New(&Options{
		Adapter:  store,
		Registry: registry,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(context.Background())
	}()

	<-started
	w.Stop()

	// The stop request must not interrupt the job in progress.
	select {
	case <-done:
		t.Fatal("worker exited before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(resume)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after draining")
	}

	claims, successes, failures := store.snapshot()
	assert.Equal(t, 1, claims, "no further claim after stop")
	assert.Equal(t, []string{"1"}, successes)
	assert.Empty(t, failures)
}

func TestWorker_Run_ContextCancel(t *testing.T) {
	store := &fakeAdapter{}

	w, err := New(&Options{
		Adapter:    store,
		SleepDelay: time.Minute,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not observe context cancellation")
	}
}

func TestWorker_Stop_Idempotent(t *testing.T) {
	w, err := New(&Options{Adapter: &fakeAdapter{}})
	require.NoError(t, err)

	w.Stop()
	w.Stop() // must not panic
}
