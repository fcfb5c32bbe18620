package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskflow/internal/notification"
	"github.com/dmitrymomot/taskflow/pkg/logger"
	"github.com/dmitrymomot/taskflow/pkg/queue"
)

// Notifier delivers one notification create request. Implemented by
// notification.Client; errors are retryable delivery failures.
type Notifier interface {
	Send(ctx context.Context, in notification.CreateInput) error
}

// NewTaskCreatedHandler consumes task.created events and posts an INFO
// in-app notification for the task owner.
func NewTaskCreatedHandler(notifier Notifier, log *slog.Logger) queue.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return queue.NewHandler(KindTaskCreated, func(ctx context.Context, e TaskEvent) error {
		in := notification.CreateInput{
			UserID:  e.UserID,
			Type:    notification.TypeInfo,
			Channel: notification.ChannelInApp,
			Subject: "New Task Created",
			Message: fmt.Sprintf("Your task %q has been created successfully!", e.Title),
		}
		if err := notifier.Send(ctx, in); err != nil {
			return err
		}
		log.InfoContext(ctx, "task created notification sent",
			logger.Event(KindTaskCreated), logger.UserID(e.UserID), logger.TaskID(e.TaskID))
		return nil
	})
}

// NewTaskCompletedHandler consumes task.completed events and posts a SUCCESS
// in-app notification for the task owner.
func NewTaskCompletedHandler(notifier Notifier, log *slog.Logger) queue.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return queue.NewHandler(KindTaskCompleted, func(ctx context.Context, e TaskEvent) error {
		in := notification.CreateInput{
			UserID:  e.UserID,
			Type:    notification.TypeSuccess,
			Channel: notification.ChannelInApp,
			Subject: "Task Completed",
			Message: fmt.Sprintf("Congratulations! You completed %q", e.Title),
		}
		if err := notifier.Send(ctx, in); err != nil {
			return err
		}
		log.InfoContext(ctx, "task completed notification sent",
			logger.Event(KindTaskCompleted), logger.UserID(e.UserID), logger.TaskID(e.TaskID))
		return nil
	})
}
