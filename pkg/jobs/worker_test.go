package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRunner records invocations and returns a fixed result.
type countingRunner struct {
	calls  int
	items  int
	runErr error
}

func (r *countingRunner) Run(_ context.Context) (int, error) {
	r.calls++
	if r.runErr != nil {
		return 0, r.runErr
	}
	return r.items, nil
}

func testWorkerConfig() *JobConfig {
	return &JobConfig{
		Concurrency:   1,
		MaxRetries:    2,
		PollInterval:  10 * time.Millisecond,
		ClaimTimeout:  time.Minute,
		RetentionDays: 7,
		Enabled:       true,
	}
}

func TestRegistryLookup(t *testing.T) {
	sweep := &countingRunner{}
	reg := Registry{KindSweep: sweep}

	got, ok := reg.Lookup(KindSweep)
	require.True(t, ok)
	assert.Equal(t, Runner(sweep), got)

	_, ok = reg.Lookup("unknown")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{KindSweep}, reg.Kinds())
}

func TestRunnerFunc(t *testing.T) {
	called := false
	r := RunnerFunc(func(_ context.Context) (int, error) {
		called = true
		return 7, nil
	})
	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 7, n)
}

func TestProcessOneCompletesJob(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	runner := &countingRunner{items: 5}
	reg := Registry{KindSweep: runner}
	wp := NewWorkerPool(store, reg.Lookup, testWorkerConfig(), nil)

	job, err := store.Enqueue(newTestJob(KindSweep))
	require.NoError(t, err)

	wp.processOne(context.Background(), 0)

	assert.Equal(t, 1, runner.calls)
	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateSucceeded, got.State)
	assert.Equal(t, 5, got.ItemsAffected)
}

func TestProcessOneFailsAndRequeues(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	runner := &countingRunner{runErr: errors.New("sweep broke")}
	reg := Registry{KindSweep: runner}
	wp := NewWorkerPool(store, reg.Lookup, testWorkerConfig(), nil)

	job, err := store.Enqueue(newTestJob(KindSweep))
	require.NoError(t, err)

	wp.processOne(context.Background(), 0)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, got.State, "first failure requeues")
	assert.Equal(t, "sweep broke", got.LastError)

	// Exhaust the retries.
	wp.processOne(context.Background(), 0)
	wp.processOne(context.Background(), 0)

	got, err = store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, got.State)
	assert.Equal(t, 3, runner.calls)
}

func TestProcessOneUnknownKindFails(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	reg := Registry{}
	cfg := testWorkerConfig()
	cfg.MaxRetries = 0
	wp := NewWorkerPool(store, reg.Lookup, cfg, nil)

	job, err := store.Enqueue(newTestJob("bogus"))
	require.NoError(t, err)

	wp.processOne(context.Background(), 0)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, got.State)
	assert.Contains(t, got.LastError, "no runner registered")
}

func TestProcessOneNoJobs(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	runner := &countingRunner{}
	reg := Registry{KindSweep: runner}
	wp := NewWorkerPool(store, reg.Lookup, testWorkerConfig(), nil)

	wp.processOne(context.Background(), 0)
	assert.Zero(t, runner.calls)
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	cfg := testWorkerConfig()
	cfg.Enabled = false
	wp := NewWorkerPool(store, Registry{}.Lookup, cfg, nil)

	done := make(chan struct{})
	go func() {
		wp.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled pool should return without blocking")
	}
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	runner := &countingRunner{items: 2}
	reg := Registry{KindAuditPurge: runner}
	wp := NewWorkerPool(store, reg.Lookup, testWorkerConfig(), nil)

	job, err := store.Enqueue(newTestJob(KindAuditPurge))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		wp.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := store.Get(job.ID)
		return err == nil && got.State == JobStateSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
