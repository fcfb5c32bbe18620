package task

import (
	"context"

	"github.com/google/uuid"
)

// Store persists tasks. Implementations return ErrNotFound for missing
// records; ownership checks live in the Service.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id uuid.UUID) (Task, error)
	List(ctx context.Context, userID uuid.UUID, status Status) ([]Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}
