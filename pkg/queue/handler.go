package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes jobs of a single name.
//
// Handle returns nil on success, a plain error for a retryable failure, or an
// error wrapped with Permanent for failures that retrying cannot fix.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// HandlerFunc is the processing function for a typed handler.
type HandlerFunc[T any] func(ctx context.Context, payload T) error

type typedHandler[T any] struct {
	name    string
	handler HandlerFunc[T]
}

// NewHandler builds a Handler that decodes the job payload into T before
// invoking fn. A payload that does not unmarshal into T is rejected as a
// permanent failure: redelivering the same bytes would fail identically.
func NewHandler[T any](name string, fn HandlerFunc[T]) Handler {
	return &typedHandler[T]{name: name, handler: fn}
}

func (h *typedHandler[T]) Name() string { return h.name }

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return Permanent(fmt.Errorf("malformed payload for job %q: %w", h.name, err))
	}
	if v, ok := any(t).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return Permanent(fmt.Errorf("invalid payload for job %q: %w", h.name, err))
		}
	}
	return h.handler(ctx, t)
}
