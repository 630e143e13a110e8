package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"accountd/pkg/logger"
)

// WorkerStorage is the storage seam for job execution. Claim must be a
// single atomic conditional update: of several concurrent pollers, each due
// job is returned to exactly one of them. Fail applies the backoff policy,
// rescheduling the job or moving it to the terminal failed state.
type WorkerStorage interface {
	Claim(ctx context.Context, limit int) ([]*Job, error)
	MarkDone(ctx context.Context, jobID uuid.UUID) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error

	// ReleaseStale returns jobs stuck in processing longer than olderThan
	// back to pending, so work claimed by a crashed worker is not lost.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// DeleteDone removes completed jobs older than the retention window.
	DeleteDone(ctx context.Context, retention time.Duration) (int64, error)
}

// Worker polls the queue and dispatches claimed jobs to registered handlers.
type Worker struct {
	storage  WorkerStorage
	handlers map[string]Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex

	pollInterval        time.Duration
	batchSize           int
	jobTimeout          time.Duration
	maintenanceInterval time.Duration
	doneRetention       time.Duration
	log                 *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pollInterval        time.Duration
	batchSize           int
	maxConcurrent       int
	jobTimeout          time.Duration
	maintenanceInterval time.Duration
	doneRetention       time.Duration
	log                 *slog.Logger
}

// WithPollInterval sets how often the worker checks for due jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBatchSize sets how many jobs are claimed per poll.
func WithBatchSize(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxConcurrent bounds the number of jobs executing at once.
func WithMaxConcurrent(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithJobTimeout bounds the execution time of a single job. A timed-out job
// counts as a failure and follows the backoff policy.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

// WithMaintenanceInterval sets how often the worker runs its housekeeping
// pass: releasing stale claims and pruning completed jobs.
func WithMaintenanceInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.maintenanceInterval = d
		}
	}
}

// WithDoneRetention sets how long completed jobs are kept before the
// housekeeping pass deletes them. Zero disables pruning.
func WithDoneRetention(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.doneRetention = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker.
func WithWorkerLogger(log *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// NewWorker creates a queue worker.
func NewWorker(storage WorkerStorage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &workerOptions{
		pollInterval:        time.Second,
		batchSize:           10,
		maxConcurrent:       10,
		jobTimeout:          time.Minute,
		maintenanceInterval: time.Minute,
		doneRetention:       24 * time.Hour,
		log:                 logger.Discard(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		storage:             storage,
		handlers:            make(map[string]Handler),
		workerID:            uuid.New(),
		sem:                 make(chan struct{}, options.maxConcurrent),
		pollInterval:        options.pollInterval,
		batchSize:           options.batchSize,
		jobTimeout:          options.jobTimeout,
		maintenanceInterval: options.maintenanceInterval,
		doneRetention:       options.doneRetention,
		log:                 options.log,
	}, nil
}

// RegisterHandlers registers job handlers keyed by task name.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins the polling loop in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.run()

	w.log.Info("queue worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop cancels polling and waits for in-flight jobs to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.log.Info("queue worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup: it starts the worker, waits
// for context cancellation, then stops gracefully.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	maintenance := time.NewTicker(w.maintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		case <-maintenance.C:
			w.maintain()
		}
	}
}

// maintain releases claims abandoned by a crashed worker, well after any
// live execution could still be running, and prunes completed jobs past the
// retention window.
func (w *Worker) maintain() {
	released, err := w.storage.ReleaseStale(w.ctx, 2*w.jobTimeout)
	if err != nil && w.ctx.Err() == nil {
		w.log.Error("failed to release stale jobs", logger.Error(err))
	} else if released > 0 {
		w.log.Warn("released stale jobs", slog.Int64("count", released))
	}

	if w.doneRetention <= 0 {
		return
	}
	deleted, err := w.storage.DeleteDone(w.ctx, w.doneRetention)
	if err != nil && w.ctx.Err() == nil {
		w.log.Error("failed to delete completed jobs", logger.Error(err))
	} else if deleted > 0 {
		w.log.Info("deleted completed jobs", slog.Int64("count", deleted))
	}
}

// poll claims a batch of due jobs and dispatches each on its own goroutine,
// bounded by the concurrency semaphore.
func (w *Worker) poll() {
	jobs, err := w.storage.Claim(w.ctx, w.batchSize)
	if err != nil {
		if w.ctx.Err() == nil {
			w.log.Error("failed to claim jobs",
				slog.String("worker_id", w.workerID.String()),
				logger.Error(err))
		}
		return
	}

	for _, job := range jobs {
		select {
		case w.sem <- struct{}{}:
		case <-w.ctx.Done():
			// Shutting down; the claimed job stays processing until the
			// stale-claim sweep reschedules it.
			return
		}

		w.wg.Add(1)
		go func(job *Job) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.execute(job)
		}(job)
	}
}

// execute runs a single claimed job and records the outcome.
func (w *Worker) execute(job *Job) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panicked",
				logger.JobID(job.ID.String()),
				slog.String("task_name", job.TaskName),
				slog.Any("panic", r))
			w.recordFailure(job, fmt.Errorf("panic in handler: %v", r))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.TaskName]
	w.mu.RUnlock()

	if !ok {
		w.log.Error("no handler registered for task type",
			logger.JobID(job.ID.String()),
			slog.String("task_name", job.TaskName))
		w.recordFailure(job, ErrHandlerNotFound)
		return
	}

	// The execution context is detached from the worker lifecycle so a
	// graceful shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	if err := handler.Handle(ctx, job.Message); err != nil {
		w.log.Error("job failed",
			logger.JobID(job.ID.String()),
			slog.String("task_name", job.TaskName),
			slog.Int("failed_attempts", int(job.FailedAttempts)),
			slog.Duration("duration", time.Since(start)),
			logger.Error(err))
		w.recordFailure(job, err)
		return
	}

	if err := w.storage.MarkDone(context.Background(), job.ID); err != nil {
		w.log.Error("failed to mark job done",
			logger.JobID(job.ID.String()),
			logger.Error(err))
		return
	}

	w.log.Info("job completed",
		logger.JobID(job.ID.String()),
		slog.String("task_name", job.TaskName),
		slog.Duration("duration", time.Since(start)))
}

func (w *Worker) recordFailure(job *Job, execErr error) {
	if err := w.storage.Fail(context.Background(), job.ID, execErr.Error()); err != nil {
		w.log.Error("failed to record job failure",
			logger.JobID(job.ID.String()),
			logger.Error(err))
	}
}
