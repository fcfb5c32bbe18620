package notification

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskflow/pkg/httpx"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/pkg/logger"
)

// ServiceTokenHeader carries the shared token on internal service-to-service
// calls.
const ServiceTokenHeader = "X-Service-Token"

// Handler exposes the notification HTTP API.
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

// Router mounts the API. The send endpoint is reachable only with the shared
// service token; the user-facing endpoints require a bearer token.
func (h *Handler) Router(jwtSvc *jwt.Service, serviceToken string) chi.Router {
	r := chi.NewRouter()
	r.NotFound(httpx.NotFoundHandler())
	r.MethodNotAllowed(httpx.MethodNotAllowedHandler())

	r.Group(func(r chi.Router) {
		r.Use(requireServiceToken(serviceToken))
		r.Post("/notifications/send", h.send)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwt.Authenticator(jwtSvc))
		r.Get("/notifications", h.list)
		r.Patch("/notifications/{id}/read", h.markAsRead)
		r.Delete("/notifications/{id}", h.delete)
	})

	return r
}

// requireServiceToken guards internal endpoints with a constant-time token
// comparison. An empty configured token disables the endpoint entirely.
func requireServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(ServiceTokenHeader)
			if token == "" || got == "" ||
				subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpx.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.BadRequest(w, err)
		return
	}

	n, err := h.svc.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			httpx.ValidationError(w, map[string]string{"input": err.Error()})
			return
		}
		h.log.ErrorContext(r.Context(), "creating notification", logger.Error(err),
			logger.UserID(in.UserID))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := jwt.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	list, err := h.svc.List(r.Context(), userID, unreadOnly)
	if err != nil {
		h.log.ErrorContext(r.Context(), "listing notifications", logger.Error(err),
			logger.UserID(userID))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) markAsRead(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	n, err := h.svc.MarkAsRead(r.Context(), id, userID)
	if err != nil {
		h.writeServiceError(w, r, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.requestIDs(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, userID); err != nil {
		h.writeServiceError(w, r, err, id)
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
		httpx.Error(w, http.StatusBadRequest, "invalid notification id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, id uuid.UUID) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "notification not found")
	case errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, "forbidden")
	default:
		h.log.ErrorContext(r.Context(), "notification request failed", logger.Error(err),
			logger.NotificationID(id))
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
