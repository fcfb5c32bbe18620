package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/internal/event"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/queue"
)

const maxTitleLen = 200

// Enqueuer publishes lifecycle events to the job queue. Implemented by
// queue.Enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// CreateInput is the payload for creating a task.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Validate checks required fields.
func (in CreateInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(in.Title) > maxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLen)
	}
	return nil
}

// UpdateInput is the payload for a partial task update. Nil fields are left
// unchanged.
type UpdateInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Validate checks the provided fields.
func (in UpdateInput) Validate() error {
	if in.Title != nil {
		if *in.Title == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		if len(*in.Title) > maxTitleLen {
			return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLen)
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}
	return nil
}

// Service implements task CRUD with ownership rules and publishes lifecycle
// events. Event publication is best-effort: the task mutation is already
// durable when the enqueue happens and a broker outage must not fail the
// request.
type Service struct {
	store    Store
	enqueuer Enqueuer
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a Service backed by store, publishing events through
// enqueuer.
func NewService(store Store, enqueuer Enqueuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	s := &Service{
		store:    store,
		enqueuer: enqueuer,
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create persists a new TODO task and publishes exactly one task.created
// event.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (Task, error) {
	if userID == uuid.Nil {
		return Task{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if err := in.Validate(); err != nil {
		return Task{}, err
	}

	now := s.now().UTC()
	t := Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, &t); err != nil {
		return Task{}, err
	}

	s.publish(ctx, event.KindTaskCreated, t)
	return t, nil
}

// Get returns the task after an ownership check.
func (s *Service) Get(ctx context.Context, id, requester uuid.UUID) (Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if t.UserID != requester {
		return Task{}, ErrForbidden
	}
	return t, nil
}

// List returns the user's tasks, newest first, optionally filtered by
// status.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status Status) ([]Task, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.List(ctx, userID, status)
}

// Update applies a partial update after an ownership check. A transition
// into COMPLETED from any other status publishes exactly one task.completed
// event; updates that keep the task completed publish nothing.
func (s *Service) Update(ctx context.Context, id, requester uuid.UUID, in UpdateInput) (Task, error) {
	if err := in.Validate(); err != nil {
		return Task{}, err
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if t.UserID != requester {
		return Task{}, ErrForbidden
	}

	prevStatus := t.Status
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, &t); err != nil {
		return Task{}, err
	}

	if prevStatus != StatusCompleted && t.Status == StatusCompleted {
		s.publish(ctx, event.KindTaskCompleted, t)
	}
	return t, nil
}

// Delete removes the task after an ownership check.
func (s *Service) Delete(ctx context.Context, id, requester uuid.UUID) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.UserID != requester {
		return ErrForbidden
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) publish(ctx context.Context, kind string, t Task) {
	jobID, err := s.enqueuer.Enqueue(ctx, kind, event.TaskEvent{
		UserID: t.UserID,
		TaskID: t.ID,
		Title:  t.Title,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "enqueueing lifecycle event", logger.Error(err),
			logger.Event(kind), logger.TaskID(t.ID), logger.UserID(t.UserID))
		return
	}
	s.log.InfoContext(ctx, "lifecycle event enqueued",
		logger.Event(kind), logger.TaskID(t.ID), logger.JobID(jobID))
}
