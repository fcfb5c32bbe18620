package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/email"
	"github.com/dmitrymomot/taskflow/pkg/logger"
)

// CreateInput is the payload for creating a notification. Type and Channel
// default to INFO and IN_APP when empty. Recipient is the email address used
// for the EMAIL channel; without it the email side channel is skipped.
type CreateInput struct {
	UserID    uuid.UUID `json:"userId"`
	Type      Type      `json:"type,omitempty"`
	Channel   Channel   `json:"channel,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	Recipient string    `json:"recipient,omitempty"`
}

// Validate normalizes defaults and checks required fields.
func (in *CreateInput) Validate() error {
	if in.UserID == uuid.Nil {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if in.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = TypeInfo
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	if in.Channel == "" {
		in.Channel = ChannelInApp
	}
	if !in.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, in.Channel)
	}
	return nil
}

// Service implements notification lifecycle and ownership rules on top of a
// Store, with an optional best-effort email side channel.
type Service struct {
	store  Store
	sender email.Sender
	log    *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEmailSender enables the EMAIL channel side delivery.
func WithEmailSender(sender email.Sender) ServiceOption {
	return func(s *Service) { s.sender = sender }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	s := &Service{
		store: store,
		log:   slog.New(slog.DiscardHandler),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create persists the notification and, for the EMAIL channel, sends an email
// best-effort. Email failures are logged and never roll back the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (Notification, error) {
	if err := in.Validate(); err != nil {
		return Notification{}, err
	}

	now := s.now().UTC()
	n := Notification{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Type:      in.Type,
		Channel:   in.Channel,
		Subject:   in.Subject,
		Message:   in.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, &n); err != nil {
		return Notification{}, err
	}

	if in.Channel == ChannelEmail {
		s.sendEmail(ctx, n, in.Recipient)
	}
	return n, nil
}

func (s *Service) sendEmail(ctx context.Context, n Notification, recipient string) {
	if s.sender == nil {
		s.log.WarnContext(ctx, "email channel requested but no sender configured",
			logger.NotificationID(n.ID), logger.UserID(n.UserID))
		return
	}
	if recipient == "" {
		s.log.WarnContext(ctx, "email channel requested without recipient",
			logger.NotificationID(n.ID), logger.UserID(n.UserID))
		return
	}

	subject := n.Subject
	if subject == "" {
		subject = "Notification"
	}
	body, err := email.RenderNotification(string(n.Type), subject, n.Message)
	if err != nil {
		s.log.ErrorContext(ctx, "rendering notification email", logger.Error(err),
			logger.NotificationID(n.ID))
		return
	}
	err = s.sender.Send(ctx, email.Message{
		To:       recipient,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "notification",
	})
	if err != nil {
		s.log.ErrorContext(ctx, "sending notification email", logger.Error(err),
			logger.NotificationID(n.ID), logger.UserID(n.UserID))
	}
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	return s.store.List(ctx, userID, unreadOnly)
}

// MarkAsRead marks the notification as read and returns the updated record.
// Repeat calls are no-ops. Requesters who do not own the record get
// ErrForbidden.
func (s *Service) MarkAsRead(ctx context.Context, id, requester uuid.UUID) (Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != requester {
		return Notification{}, ErrForbidden
	}
	if n.Read {
		return n, nil
	}
	return s.store.SetRead(ctx, id)
}

// Delete removes the notification after the same ownership check.
func (s *Service) Delete(ctx context.Context, id, requester uuid.UUID) error {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != requester {
		return ErrForbidden
	}
	return s.store.Delete(ctx, id)
}
