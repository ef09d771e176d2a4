package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"startup-hub/config"
	"startup-hub/metrics"
	"startup-hub/models"
)

// Handler executes one attempt of a job. Wrap an error with Retry to ask for
// another attempt; any other error fails the job for good.
type Handler func(ctx context.Context, job *models.Job) error

// RetryPolicy bounds the attempts of a task and spaces them by Delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// PolicyFromConfig turns "retries after the first attempt" into a policy.
func PolicyFromConfig(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{MaxAttempts: c.MaxRetries + 1, Delay: c.Delay}
}

// Enqueuer is the producer side of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task string, payload any) (*models.Job, error)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retry marks err as transient.
func Retry(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retry.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Decode unmarshals the job payload into v.
func Decode(job *models.Job, v any) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Task, err)
	}
	return nil
}

type registration struct {
	policy  RetryPolicy
	handler Handler
}

// Queue persists jobs in the database and runs them on a fixed worker pool.
// Delayed retries and jobs left by a previous process are picked up by a poller.
type Queue struct {
	db           *gorm.DB
	logger       zerolog.Logger
	metrics      *metrics.Recorder
	workers      int
	pollInterval time.Duration
	ready        chan string

	mu       sync.RWMutex
	handlers map[string]registration

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ Enqueuer = (*Queue)(nil)

// New builds a stopped queue.
func New(db *gorm.DB, cfg config.TasksConfig, logger zerolog.Logger, rec *metrics.Recorder) *Queue {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Queue{
		db:           db,
		logger:       logger,
		metrics:      rec,
		workers:      workers,
		pollInterval: poll,
		ready:        make(chan string, size),
		handlers:     map[string]registration{},
	}
}

// Register binds a handler and its retry policy to a task name.
func (q *Queue) Register(task string, policy RetryPolicy, h Handler) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[task] = registration{policy: policy, handler: h}
}

// Enqueue persists a job for task and wakes a worker.
func (q *Queue) Enqueue(ctx context.Context, task string, payload any) (*models.Job, error) {
	q.mu.RLock()
	reg, ok := q.handlers[task]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("enqueue: unknown task %q", task)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: marshal payload: %w", task, err)
	}
	job := models.Job{
		Task:        task,
		Payload:     datatypes.JSON(raw),
		Status:      models.JobQueued,
		MaxAttempts: reg.policy.MaxAttempts,
		RunAfter:    now(),
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task, err)
	}

	q.logger.Debug().Str("job_id", job.ID).Str("task", task).Msg("job enqueued")
	q.signal(job.ID)
	return &job, nil
}

// Start launches the workers and the poller. Jobs left RUNNING by a previous
// process are put back in the queue first.
func (q *Queue) Start(ctx context.Context) error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.running {
		return errors.New("queue already started")
	}

	if err := q.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ?", models.JobRunning).
		Update("status", models.JobQueued).Error; err != nil {
		return fmt.Errorf("requeue stale jobs: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.wg.Add(1)
	go q.poll(ctx)

	q.logger.Info().Int("workers", q.workers).Dur("poll_interval", q.pollInterval).Msg("job queue started")
	return nil
}

// Stop cancels the workers and waits for running handlers to return.
func (q *Queue) Stop() {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if !q.running {
		return
	}
	q.cancel()
	q.wg.Wait()
	q.running = false
	q.logger.Info().Msg("job queue stopped")
}

func (q *Queue) signal(id string) {
	select {
	case q.ready <- id:
	default:
		// full; the poller will find it
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.ready:
			q.run(ctx, id)
		}
	}
}

func (q *Queue) poll(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	q.dispatchDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.dispatchDue(ctx)
		}
	}
}

func (q *Queue) dispatchDue(ctx context.Context) {
	var ids []string
	err := q.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND run_after <= ?", models.JobQueued, now()).
		Order("run_after").
		Limit(cap(q.ready)).
		Pluck("id", &ids).Error
	if err != nil {
		if ctx.Err() == nil {
			q.logger.Error().Err(err).Msg("poll due jobs")
		}
		return
	}
	for _, id := range ids {
		q.signal(id)
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	// claim: only one worker moves a job out of QUEUED
	res := q.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobQueued).
		Updates(map[string]any{
			"status":   models.JobRunning,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		q.logger.Error().Err(res.Error).Str("job_id", id).Msg("claim job")
		return
	}
	if res.RowsAffected == 0 {
		return
	}

	var job models.Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		q.logger.Error().Err(err).Str("job_id", id).Msg("load claimed job")
		return
	}

	log := q.logger.With().Str("job_id", job.ID).Str("task", job.Task).Int("attempt", job.Attempts).Logger()

	q.mu.RLock()
	reg, ok := q.handlers[job.Task]
	q.mu.RUnlock()
	if !ok {
		q.finish(ctx, &job, models.JobFailed, fmt.Sprintf("no handler registered for %q", job.Task), 0)
		log.Error().Msg("job has no handler")
		return
	}

	start := time.Now()
	err := safeCall(ctx, reg.handler, &job)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		q.finish(ctx, &job, models.JobSucceeded, "", 0)
		q.metrics.ObserveJob(job.Task, "succeeded", elapsed)
		log.Info().Dur("elapsed", elapsed).Msg("job succeeded")
	case IsRetryable(err) && job.Attempts < job.MaxAttempts:
		q.finish(ctx, &job, models.JobQueued, err.Error(), reg.policy.Delay)
		q.metrics.ObserveJob(job.Task, "retried", elapsed)
		log.Warn().Err(err).Dur("retry_in", reg.policy.Delay).Msg("job will be retried")
	default:
		q.finish(ctx, &job, models.JobFailed, err.Error(), 0)
		q.metrics.ObserveJob(job.Task, "failed", elapsed)
		log.Error().Err(err).Msg("job failed")
	}
}

func (q *Queue) finish(ctx context.Context, job *models.Job, status models.JobStatus, lastErr string, delay time.Duration) {
	updates := map[string]any{
		"status":     status,
		"last_error": lastErr,
	}
	if status == models.JobQueued {
		updates["run_after"] = now().Add(delay)
	}
	// the job outcome must be recorded even when shutdown cancelled ctx
	db := q.db.WithContext(context.WithoutCancel(ctx))
	if err := db.Model(&models.Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		q.logger.Error().Err(err).Str("job_id", job.ID).Msg("record job outcome")
	}
}

func safeCall(ctx context.Context, h Handler, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

func now() time.Time { return time.Now().UTC() }
