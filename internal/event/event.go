// Package event defines the task lifecycle events flowing through the queue
// and the worker handlers that turn them into notifications.
package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Job names for task lifecycle events.
const (
	KindTaskCreated   = "task.created"
	KindTaskCompleted = "task.completed"
)

// TaskEvent is the payload carried by both lifecycle events. It is validated
// at the producer boundary and again at dequeue; an invalid payload is a
// permanent delivery failure.
type TaskEvent struct {
	UserID uuid.UUID `json:"userId"`
	TaskID uuid.UUID `json:"taskId"`
	Title  string    `json:"title"`
}

// Validate checks all fields are present.
func (e TaskEvent) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("task event: userId is required")
	}
	if e.TaskID == uuid.Nil {
		return fmt.Errorf("task event: taskId is required")
	}
	if e.Title == "" {
		return fmt.Errorf("task event: title is required")
	}
	return nil
}
