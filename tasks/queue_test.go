package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"startup-hub/config"
	"startup-hub/database/dbtest"
	"startup-hub/models"
)

func newQueue(t *testing.T) (*Queue, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	q := New(db, config.TasksConfig{Workers: 2, PollInterval: 10 * time.Millisecond, QueueSize: 8}, zerolog.Nop(), nil)
	return q, db
}

func start(t *testing.T, q *Queue) {
	t.Helper()
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(q.Stop)
}

func waitStatus(t *testing.T, db *gorm.DB, id string, want models.JobStatus) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		if err := db.First(&job, "id = ?", id).Error; err != nil {
			return false
		}
		return job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestEnqueueRunsHandlerWithPayload(t *testing.T) {
	q, db := newQueue(t)

	got := make(chan int, 1)
	q.Register("count", RetryPolicy{MaxAttempts: 1}, func(ctx context.Context, job *models.Job) error {
		var p struct{ N int }
		if err := Decode(job, &p); err != nil {
			return err
		}
		got <- p.N
		return nil
	})
	start(t, q)

	job, err := q.Enqueue(context.Background(), "count", map[string]int{"N": 42})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	select {
	case n := <-got:
		assert.Equal(t, 42, n)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}
	done := waitStatus(t, db, job.ID, models.JobSucceeded)
	assert.Equal(t, 1, done.Attempts)
}

func TestRetryableErrorsAreRetriedUpToMaxAttempts(t *testing.T) {
	q, db := newQueue(t)

	var calls atomic.Int32
	q.Register("flaky", RetryPolicy{MaxAttempts: 3}, func(ctx context.Context, job *models.Job) error {
		calls.Add(1)
		return Retry(errors.New("agent unreachable"))
	})
	start(t, q)

	job, err := q.Enqueue(context.Background(), "flaky", nil)
	require.NoError(t, err)

	failed := waitStatus(t, db, job.ID, models.JobFailed)
	assert.Equal(t, 3, failed.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, failed.LastError, "agent unreachable")
}

func TestRetryThenSucceed(t *testing.T) {
	q, db := newQueue(t)

	var calls atomic.Int32
	q.Register("eventually", RetryPolicy{MaxAttempts: 4}, func(ctx context.Context, job *models.Job) error {
		if calls.Add(1) < 2 {
			return Retry(errors.New("timeout"))
		}
		return nil
	})
	start(t, q)

	job, err := q.Enqueue(context.Background(), "eventually", nil)
	require.NoError(t, err)

	done := waitStatus(t, db, job.ID, models.JobSucceeded)
	assert.Equal(t, 2, done.Attempts)
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	q, db := newQueue(t)

	var calls atomic.Int32
	q.Register("broken", RetryPolicy{MaxAttempts: 5}, func(ctx context.Context, job *models.Job) error {
		calls.Add(1)
		return errors.New("bad payload")
	})
	start(t, q)

	job, err := q.Enqueue(context.Background(), "broken", nil)
	require.NoError(t, err)

	failed := waitStatus(t, db, job.ID, models.JobFailed)
	assert.Equal(t, 1, failed.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPanicFailsJob(t *testing.T) {
	q, db := newQueue(t)
	q.Register("panics", RetryPolicy{MaxAttempts: 2}, func(ctx context.Context, job *models.Job) error {
		panic("boom")
	})
	start(t, q)

	job, err := q.Enqueue(context.Background(), "panics", nil)
	require.NoError(t, err)

	failed := waitStatus(t, db, job.ID, models.JobFailed)
	assert.Contains(t, failed.LastError, "boom")
}

func TestEnqueueUnknownTask(t *testing.T) {
	q, _ := newQueue(t)
	_, err := q.Enqueue(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestJobsEnqueuedBeforeStartRun(t *testing.T) {
	q, db := newQueue(t)
	q.Register("later", RetryPolicy{MaxAttempts: 1}, func(ctx context.Context, job *models.Job) error { return nil })

	job, err := q.Enqueue(context.Background(), "later", nil)
	require.NoError(t, err)

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobQueued, stored.Status)

	start(t, q)
	waitStatus(t, db, job.ID, models.JobSucceeded)
}

func TestStartRequeuesStaleRunningJobs(t *testing.T) {
	q, db := newQueue(t)
	seen := make(chan int, 1)
	q.Register("stale", RetryPolicy{MaxAttempts: 3}, func(ctx context.Context, job *models.Job) error {
		seen <- job.Attempts
		return nil
	})

	stale := models.Job{Task: "stale", Status: models.JobRunning, Attempts: 1, MaxAttempts: 3}
	require.NoError(t, db.Create(&stale).Error)

	start(t, q)
	done := waitStatus(t, db, stale.ID, models.JobSucceeded)
	assert.Equal(t, 2, done.Attempts)
	// handlers tell a resumed job from a first run by its attempt count
	assert.Equal(t, 2, <-seen)
}

func TestStartTwiceFails(t *testing.T) {
	q, _ := newQueue(t)
	start(t, q)
	require.Error(t, q.Start(context.Background()))
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.RetryConfig{MaxRetries: 3, Delay: time.Minute})
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, time.Minute, p.Delay)
}
