package httpserver

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthHandler reports service health. With no checks it is a liveness
// probe answering 200 "ok". With checks it is a readiness probe: every check
// must pass within the request context or the handler answers 503.
func HealthHandler(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "health check failed", slog.Any("error", err))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
