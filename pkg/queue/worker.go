package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerStorage defines the persistence operations a worker needs.
type WorkerStorage interface {
	// ClaimJob atomically leases the next due pending job for lease duration.
	// It returns ErrNoJobToClaim when nothing is due.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error)

	// CompleteJob acknowledges a leased job as successfully processed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob records a failed attempt and increments the retry count. With
	// retryIn > 0 the job is rescheduled that far in the future; with
	// retryIn <= 0 it is marked failed and left for dead-lettering.
	FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryIn time.Duration) error

	// MoveToDeadLetter transfers the job into the dead-letter queue.
	MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error
}

// DeadLetterStorage exposes the dead-letter queue for inspection and manual
// replay. Both bundled storages implement it alongside WorkerStorage.
type DeadLetterStorage interface {
	ListDeadJobs(ctx context.Context, queue string, limit int) ([]DeadJob, error)
	RequeueDeadJob(ctx context.Context, deadID uuid.UUID) error
}

// Worker claims jobs from one or more queues and dispatches them to
// registered handlers. Handler invocations run concurrently up to the
// configured pool size; each invocation operates on its own leased job.
type Worker struct {
	storage  WorkerStorage
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pollInterval time.Duration
	leaseTimeout time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueues sets the queues the worker claims from.
func WithQueues(queues ...string) WorkerOption {
	return func(w *Worker) {
		if len(queues) > 0 {
			w.queues = queues
		}
	}
}

// WithPollInterval sets how often the worker checks for due jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLeaseTimeout sets the exclusive lease duration per delivery. A handler
// that outlives the lease may see its job redelivered to another worker.
func WithLeaseTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.leaseTimeout = d
		}
	}
}

// WithConcurrency bounds the number of handler invocations in flight.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

// WithRetryBackoff sets the exponential backoff parameters used to
// reschedule failed jobs: base, 2*base, 4*base, ... capped at max.
func WithRetryBackoff(base, max time.Duration) WorkerOption {
	return func(w *Worker) {
		if base > 0 {
			w.backoffBase = base
		}
		if max > 0 {
			w.backoffCap = max
		}
	}
}

// WithWorkerLogger sets the logger for the worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates a worker bound to the given storage.
func NewWorker(storage WorkerStorage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	w := &Worker{
		storage:      storage,
		handlers:     make(map[string]Handler),
		queues:       []string{DefaultQueueName},
		workerID:     uuid.New(),
		sem:          make(chan struct{}, 1),
		pollInterval: time.Second,
		leaseTimeout: 5 * time.Minute,
		backoffBase:  5 * time.Second,
		backoffCap:   5 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// RegisterHandler registers a handler for its job name. Registering the same
// name twice replaces the previous handler.
func (w *Worker) RegisterHandler(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins claiming and processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("concurrency", cap(w.sem)))
	return nil
}

// Stop shuts the worker down, waiting for in-flight handlers to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return errors.New("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup: it starts the worker, blocks
// until ctx is cancelled, then stops it.
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

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()
					if err := w.claimAndProcess(); err != nil {
						w.logger.Error("failed to process job",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				// all slots busy, skip this tick
			}
		}
	}
}

func (w *Worker) claimAndProcess() error {
	job, err := w.storage.ClaimJob(w.ctx, w.workerID, w.queues, w.leaseTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		// Broker unreachable: the next tick retries the claim.
		return errors.Join(ErrQueueUnavailable, err)
	}
	if job == nil {
		return nil
	}
	return w.process(job)
}

func (w *Worker) process(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.String("job_name", job.Name),
				slog.Any("panic", r))
			_ = w.fail(job, retErr)
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		// An unknown job name is a permanent no-op, not a failure: the job is
		// acknowledged so it is neither retried nor dead-lettered.
		w.logger.Warn("unknown job name, acknowledging without processing",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_name", job.Name))
		return w.storage.CompleteJob(w.ctx, job.ID)
	}

	// The handler timeout is detached from the worker lifecycle so graceful
	// shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.leaseTimeout)
	defer cancel()

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("job failed",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_name", job.Name),
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
			slog.Bool("permanent", IsPermanent(err)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return w.fail(job, err)
	}

	if err := w.storage.CompleteJob(w.ctx, job.ID); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}
	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.String("queue", job.Queue),
		slog.Duration("duration", duration))
	return nil
}

// fail records the failed attempt and decides between reschedule and
// dead-letter. Permanent errors and exhausted retry budgets dead-letter the
// job; anything else is rescheduled with exponential backoff.
func (w *Worker) fail(job *Job, execErr error) error {
	dead := IsPermanent(execErr) || job.RetryCount+1 > job.MaxRetries

	retryIn := time.Duration(0)
	if !dead {
		retryIn = w.backoff(job.RetryCount)
	}

	if err := w.storage.FailJob(w.ctx, job.ID, execErr.Error(), retryIn); err != nil {
		return fmt.Errorf("failed to record failure for job %s: %w", job.ID, err)
	}

	if dead {
		if err := w.storage.MoveToDeadLetter(w.ctx, job.ID); err != nil {
			return fmt.Errorf("failed to dead-letter job %s: %w", job.ID, err)
		}
		w.logger.Warn("job moved to dead-letter queue",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_name", job.Name))
	}
	return nil
}

// backoff returns base*2^attempt capped at the configured maximum.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.backoffBase
	for range attempt {
		d *= 2
		if d >= w.backoffCap {
			return w.backoffCap
		}
	}
	if d > w.backoffCap {
		return w.backoffCap
	}
	return d
}

// WorkerID returns the unique identifier of this worker instance.
func (w *Worker) WorkerID() uuid.UUID { return w.workerID }
