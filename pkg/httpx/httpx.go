// Package httpx carries the JSON request/response conventions shared by the
// taskapi and notifier handlers: strict request decoding and a uniform error
// envelope.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
)

var (
	ErrUnsupportedMediaType = errors.New("httpx: unsupported media type")
	ErrInvalidJSON          = errors.New("httpx: invalid json body")
)

// DecodeJSON decodes the request body into v. The content type must be
// application/json; unknown fields and trailing data are rejected so client
// mistakes surface as 400s instead of silently dropped fields.
func DecodeJSON(r *http.Request, v any) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return fmt.Errorf("%w: missing content type", ErrUnsupportedMediaType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: got %q", ErrUnsupportedMediaType, contentType)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}
		return errors.Join(ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after json value", ErrInvalidJSON)
	}
	return nil
}

// ErrorBody is the uniform error envelope returned by all handlers.
type ErrorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status. Encoding failures
// are logged and the connection is left to the client to notice; headers are
// already written at that point.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding json response", slog.Any("error", err))
	}
}

// Error writes the uniform error envelope with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// ValidationError writes a 422 with per-field messages.
func ValidationError(w http.ResponseWriter, details map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, ErrorBody{
		Error:   "validation failed",
		Details: details,
	})
}

// BadRequest writes a 400 derived from a decode or validation error.
func BadRequest(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedMediaType):
		Error(w, http.StatusUnsupportedMediaType, "expected application/json")
	case errors.Is(err, ErrInvalidJSON):
		Error(w, http.StatusBadRequest, "invalid json body")
	default:
		Error(w, http.StatusBadRequest, err.Error())
	}
}

// NotFoundHandler is mounted as the router fallback so unknown routes get the
// same envelope as handler errors.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, "not found")
	}
}

// MethodNotAllowedHandler is the router fallback for known routes with
// unsupported methods.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
