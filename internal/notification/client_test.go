package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/internal/notification"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	_, err := notification.NewClient(notification.ClientConfig{BaseURL: "://bad", ServiceToken: "t"})
	require.ErrorIs(t, err, notification.ErrClientConfig)

	_, err = notification.NewClient(notification.ClientConfig{BaseURL: "http://localhost:8081"})
	require.ErrorIs(t, err, notification.ErrClientConfig)
}

func TestClientSend(t *testing.T) {
	t.Parallel()

	t.Run("posts payload with service token", func(t *testing.T) {
		t.Parallel()

		var got notification.CreateInput
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/notifications/send", r.URL.Path)
			assert.Equal(t, "secret", r.Header.Get(notification.ServiceTokenHeader))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		client, err := notification.NewClient(notification.ClientConfig{
			BaseURL:      srv.URL,
			ServiceToken: "secret",
		})
		require.NoError(t, err)

		userID := uuid.New()
		err = client.Send(context.Background(), notification.CreateInput{
			UserID:  userID,
			Type:    notification.TypeInfo,
			Channel: notification.ChannelInApp,
			Subject: "New Task Created",
			Message: `Your task "Ship it" has been created successfully!`,
		})
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, "New Task Created", got.Subject)
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client, err := notification.NewClient(notification.ClientConfig{
			BaseURL:      srv.URL,
			ServiceToken: "secret",
		})
		require.NoError(t, err)

		err = client.Send(context.Background(), notification.CreateInput{UserID: uuid.New(), Message: "m"})
		require.ErrorIs(t, err, notification.ErrSendRejected)
	})

	t.Run("timeout surfaces as error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		client, err := notification.NewClient(notification.ClientConfig{
			BaseURL:      srv.URL,
			ServiceToken: "secret",
			Timeout:      50 * time.Millisecond,
		})
		require.NoError(t, err)

		err = client.Send(context.Background(), notification.CreateInput{UserID: uuid.New(), Message: "m"})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
