package notification

import (
	"context"

	"github.com/google/uuid"
)

// Store persists notifications. Implementations return ErrNotFound for
// missing records; ownership checks live in the Service.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id uuid.UUID) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error)
	SetRead(ctx context.Context, id uuid.UUID) (Notification, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
