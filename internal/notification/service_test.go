package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/internal/notification"
	"github.com/dmitrymomot/taskflow/pkg/email"
)

type captureSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureSender) messages() []email.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]email.Message(nil), c.sent...)
}

func newTestService(t *testing.T, opts ...notification.ServiceOption) (*notification.Service, *notification.MemoryStore) {
	t.Helper()
	store := notification.NewMemoryStore()
	svc, err := notification.NewService(store, opts...)
	require.NoError(t, err)
	return svc, store
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	t.Run("persists with defaults", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t)
		userID := uuid.New()

		n, err := svc.Create(context.Background(), notification.CreateInput{
			UserID:  userID,
			Message: "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, notification.TypeInfo, n.Type)
		assert.Equal(t, notification.ChannelInApp, n.Channel)
		assert.False(t, n.Read)

		stored, err := store.Get(context.Background(), n.ID)
		require.NoError(t, err)
		assert.Equal(t, n, stored)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t)

		_, err := svc.Create(context.Background(), notification.CreateInput{Message: "x"})
		require.ErrorIs(t, err, notification.ErrInvalidInput)

		_, err = svc.Create(context.Background(), notification.CreateInput{UserID: uuid.New()})
		require.ErrorIs(t, err, notification.ErrInvalidInput)

		_, err = svc.Create(context.Background(), notification.CreateInput{
			UserID: uuid.New(), Message: "x", Type: "LOUD",
		})
		require.ErrorIs(t, err, notification.ErrInvalidInput)

		_, err = svc.Create(context.Background(), notification.CreateInput{
			UserID: uuid.New(), Message: "x", Channel: "PIGEON",
		})
		require.ErrorIs(t, err, notification.ErrInvalidInput)
	})

	t.Run("email channel sends rendered email", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{}
		svc, _ := newTestService(t, notification.WithEmailSender(sender))

		_, err := svc.Create(context.Background(), notification.CreateInput{
			UserID:    uuid.New(),
			Type:      notification.TypeSuccess,
			Channel:   notification.ChannelEmail,
			Subject:   "Task Completed",
			Message:   `Congratulations! You completed "Ship it"`,
			Recipient: "user@example.com",
		})
		require.NoError(t, err)

		msgs := sender.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "user@example.com", msgs[0].To)
		assert.Equal(t, "Task Completed", msgs[0].Subject)
		assert.Contains(t, msgs[0].BodyHTML, "Ship it")
	})

	t.Run("email failure does not roll back record", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{err: errors.New("smtp down")}
		svc, store := newTestService(t, notification.WithEmailSender(sender))
		userID := uuid.New()

		n, err := svc.Create(context.Background(), notification.CreateInput{
			UserID:    userID,
			Channel:   notification.ChannelEmail,
			Message:   "msg",
			Recipient: "user@example.com",
		})
		require.NoError(t, err)

		_, err = store.Get(context.Background(), n.ID)
		require.NoError(t, err)
	})

	t.Run("email channel without recipient persists and skips email", func(t *testing.T) {
		t.Parallel()

		sender := &captureSender{}
		svc, _ := newTestService(t, notification.WithEmailSender(sender))

		_, err := svc.Create(context.Background(), notification.CreateInput{
			UserID:  uuid.New(),
			Channel: notification.ChannelEmail,
			Message: "msg",
		})
		require.NoError(t, err)
		assert.Empty(t, sender.messages())
	})
}

func TestServiceList(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	owner := uuid.New()
	other := uuid.New()

	mustCreate := func(userID uuid.UUID, msg string) notification.Notification {
		n, err := svc.Create(context.Background(), notification.CreateInput{UserID: userID, Message: msg})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		return n
	}

	first := mustCreate(owner, "first")
	second := mustCreate(owner, "second")
	third := mustCreate(owner, "third")
	mustCreate(other, "not yours")

	_, err := svc.MarkAsRead(context.Background(), second.ID, owner)
	require.NoError(t, err)

	t.Run("all ordered newest first", func(t *testing.T) {
		all, err := svc.List(context.Background(), owner, false)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID},
			[]uuid.UUID{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("unread only is a filtered subset", func(t *testing.T) {
		unread, err := svc.List(context.Background(), owner, true)
		require.NoError(t, err)
		require.Len(t, unread, 2)
		for _, n := range unread {
			assert.False(t, n.Read)
		}
		assert.Equal(t, third.ID, unread[0].ID)
		assert.Equal(t, first.ID, unread[1].ID)
	})

	t.Run("empty for unknown user", func(t *testing.T) {
		list, err := svc.List(context.Background(), uuid.New(), false)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestServiceMarkAsRead(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	owner := uuid.New()

	n, err := svc.Create(context.Background(), notification.CreateInput{UserID: owner, Message: "msg"})
	require.NoError(t, err)

	t.Run("non owner forbidden", func(t *testing.T) {
		_, err := svc.MarkAsRead(context.Background(), n.ID, uuid.New())
		require.ErrorIs(t, err, notification.ErrForbidden)
	})

	t.Run("unknown id not found", func(t *testing.T) {
		_, err := svc.MarkAsRead(context.Background(), uuid.New(), owner)
		require.ErrorIs(t, err, notification.ErrNotFound)
	})

	t.Run("owner marks read, idempotent", func(t *testing.T) {
		updated, err := svc.MarkAsRead(context.Background(), n.ID, owner)
		require.NoError(t, err)
		assert.True(t, updated.Read)

		again, err := svc.MarkAsRead(context.Background(), n.ID, owner)
		require.NoError(t, err)
		assert.True(t, again.Read)
		assert.Equal(t, updated.UpdatedAt, again.UpdatedAt)
	})
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	owner := uuid.New()

	n, err := svc.Create(context.Background(), notification.CreateInput{UserID: owner, Message: "msg"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), n.ID, uuid.New()), notification.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), owner), notification.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), n.ID, owner))
	_, err = store.Get(context.Background(), n.ID)
	require.ErrorIs(t, err, notification.ErrNotFound)
}

func TestNewService(t *testing.T) {
	t.Parallel()

	_, err := notification.NewService(nil)
	require.ErrorIs(t, err, notification.ErrStoreNil)
}
