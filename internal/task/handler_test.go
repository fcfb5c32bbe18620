package task_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/internal/task"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
)

type taskAPI struct {
	router http.Handler
	jwtSvc *jwt.Service
	enq    *fakeEnqueuer
}

func newTaskAPI(t *testing.T) *taskAPI {
	t.Helper()

	enq := &fakeEnqueuer{}
	svc, err := task.NewService(task.NewMemoryStore(), enq)
	require.NoError(t, err)

	jwtSvc, err := jwt.New(jwt.Config{SigningKey: "test-signing-key-of-sufficient-len", TTL: time.Hour})
	require.NoError(t, err)

	return &taskAPI{
		router: task.NewHandler(svc, nil).Router(jwtSvc),
		jwtSvc: jwtSvc,
		enq:    enq,
	}
}

func (a *taskAPI) request(t *testing.T, method, path, body string, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != uuid.Nil {
		token, err := a.jwtSvc.Generate(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestTaskAPI(t *testing.T) {
	t.Parallel()

	t.Run("requires auth", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		rec := api.request(t, http.MethodGet, "/tasks", "", uuid.Nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create list get update delete", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		userID := uuid.New()

		rec := api.request(t, http.MethodPost, "/tasks",
			`{"title":"Ship release","description":"v1"}`, userID)
		require.Equal(t, http.StatusCreated, rec.Code)

		var created task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, task.StatusTodo, created.Status)
		assert.Equal(t, userID, created.UserID)

		rec = api.request(t, http.MethodGet, "/tasks", "", userID)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)

		rec = api.request(t, http.MethodGet, "/tasks/"+created.ID.String(), "", userID)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = api.request(t, http.MethodPatch, "/tasks/"+created.ID.String(),
			`{"status":"COMPLETED"}`, userID)
		require.Equal(t, http.StatusOK, rec.Code)
		var updated task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, task.StatusCompleted, updated.Status)

		rec = api.request(t, http.MethodDelete, "/tasks/"+created.ID.String(), "", userID)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = api.request(t, http.MethodGet, "/tasks/"+created.ID.String(), "", userID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("validation errors map to 422", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		rec := api.request(t, http.MethodPost, "/tasks", `{"title":""}`, uuid.New())
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed json maps to 400", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		rec := api.request(t, http.MethodPost, "/tasks", `{"title"`, uuid.New())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign task is forbidden", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		owner := uuid.New()

		rec := api.request(t, http.MethodPost, "/tasks", `{"title":"mine"}`, owner)
		require.Equal(t, http.StatusCreated, rec.Code)
		var created task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		rec = api.request(t, http.MethodGet, "/tasks/"+created.ID.String(), "", uuid.New())
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = api.request(t, http.MethodDelete, "/tasks/"+created.ID.String(), "", uuid.New())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid id maps to 400", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		rec := api.request(t, http.MethodGet, "/tasks/not-an-id", "", uuid.New())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("status filter", func(t *testing.T) {
		t.Parallel()

		api := newTaskAPI(t)
		userID := uuid.New()

		rec := api.request(t, http.MethodPost, "/tasks", `{"title":"a"}`, userID)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = api.request(t, http.MethodGet, "/tasks?status=COMPLETED", "", userID)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []task.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Empty(t, list)

		rec = api.request(t, http.MethodGet, "/tasks?status=BOGUS", "", userID)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
