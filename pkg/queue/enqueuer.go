package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerStorage persists newly created jobs.
type EnqueuerStorage interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer adds jobs to a named queue. It returns as soon as the job is
// durably stored and never waits for consumption.
type Enqueuer struct {
	storage           EnqueuerStorage
	defaultQueue      string
	defaultMaxRetries int
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultQueue sets the queue used when Enqueue is called without WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(e *Enqueuer) {
		if queue != "" {
			e.defaultQueue = queue
		}
	}
}

// WithDefaultMaxRetries sets the retry cap applied to enqueued jobs.
func WithDefaultMaxRetries(n int) EnqueuerOption {
	return func(e *Enqueuer) {
		if n >= 0 {
			e.defaultMaxRetries = n
		}
	}
}

// NewEnqueuer creates an Enqueuer backed by the given storage.
func NewEnqueuer(storage EnqueuerStorage, opts ...EnqueuerOption) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	e := &Enqueuer{
		storage:           storage,
		defaultQueue:      DefaultQueueName,
		defaultMaxRetries: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue      string
	maxRetries int
	delay      time.Duration
}

// WithQueue routes the job to a specific queue.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithMaxRetries overrides the retry cap for this job.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithDelay postpones the first delivery attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// Enqueue stores a job named name carrying payload and returns its id.
// The payload is JSON-encoded; if it implements Validate() error the payload
// is validated before it ever reaches the broker.
//
// Storage failures are wrapped with ErrQueueUnavailable so callers can treat
// them as an infrastructure condition rather than a business error.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}
	if v, ok := payload.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return uuid.Nil, fmt.Errorf("invalid payload for job %q: %w", name, err)
		}
	}

	options := enqueueOptions{
		queue:      e.defaultQueue,
		maxRetries: e.defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	now := time.Now()
	job := &Job{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        name,
		Payload:     raw,
		Status:      JobStatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: now.Add(options.delay),
		CreatedAt:   now,
	}

	if err := e.storage.CreateJob(ctx, job); err != nil {
		return uuid.Nil, errors.Join(ErrQueueUnavailable, fmt.Errorf("failed to create job %q in queue %q: %w", name, job.Queue, err))
	}
	return job.ID, nil
}
