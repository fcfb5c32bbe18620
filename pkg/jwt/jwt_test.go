package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/jwt"
)

func newService(t *testing.T) *jwt.Service {
	t.Helper()
	svc, err := jwt.New(jwt.Config{
		SigningKey: "test-signing-key-of-sufficient-len",
		TTL:        time.Hour,
		Issuer:     "taskflow-test",
	})
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(jwt.Config{})
	require.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestGenerateParse(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		userID := uuid.New()

		token, err := svc.Generate(userID)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, "."), 3)

		claims, err := svc.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "taskflow-test", claims.Issuer)

		got, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		token, err := svc.Generate(uuid.New())
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[1] = "eyJzdWIiOiJvdGhlciJ9"
		_, err = svc.Parse(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		t.Parallel()

		token, err := newService(t).Generate(uuid.New())
		require.NoError(t, err)

		other, err := jwt.New(jwt.Config{SigningKey: "completely-different-signing-key"})
		require.NoError(t, err)
		_, err = other.Parse(token)
		require.ErrorIs(t, err, jwt.ErrInvalidSignature)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		token, err := svc.GenerateWithClaims(jwt.Claims{
			Subject:   uuid.NewString(),
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		_, err = svc.Parse(token)
		require.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		t.Parallel()

		_, err := newService(t).Parse("not-a-token")
		require.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("non uuid subject", func(t *testing.T) {
		t.Parallel()

		svc := newService(t)
		token, err := svc.GenerateWithClaims(jwt.Claims{Subject: "alice"})
		require.NoError(t, err)

		claims, err := svc.Parse(token)
		require.NoError(t, err)
		_, err = claims.UserID()
		require.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}
