package task

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/httpx"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
)

// Handler exposes the task HTTP API.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler creates the HTTP handler around svc.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, log: log}
}

// Router mounts the task CRUD API. All routes require a bearer token.
func (h *Handler) Router(jwtSvc *jwt.Service) chi.Router {
	r := chi.NewRouter()
	r.NotFound(httpx.NotFoundHandler())
	r.MethodNotAllowed(httpx.MethodNotAllowedHandler())

	r.Group(func(r chi.Router) {
		r.Use(jwt.Authenticator(jwtSvc))
		r.Post("/tasks", h.create)
		r.Get("/tasks", h.list)
		r.Get("/tasks/{id}", h.get)
		r.Patch("/tasks/{id}", h.update)
		r.Delete("/tasks/{id}", h.delete)
	})

	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := jwt.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.BadRequest(w, err)
		return
	}

	t, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := jwt.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status := Status(r.URL.Query().Get("status"))
	list, err := h.svc.List(r.Context(), userID, status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), id, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.BadRequest(w, err)
		return
	}

	t, err := h.svc.Update(r.Context(), id, userID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) requestIDs(w http.ResponseWriter, r *http.Request) (userID, id uuid.UUID, ok bool) {
	userID, ok = jwt.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid task id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.ValidationError(w, map[string]string{"input": err.Error()})
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "task not found")
	case errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, "forbidden")
	default:
		h.log.ErrorContext(r.Context(), "task request failed", logger.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
