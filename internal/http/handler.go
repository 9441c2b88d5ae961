package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meeting-checkin/internal/application"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// base is embedded by every resource handler.
type base struct {
	name      string
	responder responder
	logger    *slog.Logger
}

func newBase(name string, logger *slog.Logger) base {
	logger = defaultLogger(logger)
	return base{name: name, responder: newResponder(logger), logger: logger}
}

// log prefers the request-scoped logger installed by RequestLogger so entries
// carry the request_id.
func (b base) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(b.logger)
	}

	pairs := make([]any, 0, len(attrs)+4)
	pairs = append(pairs, "handler", b.name)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}

// fail logs a service error with its kind and writes the mapped response.
func (b base) fail(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, err error) {
	logger.ErrorContext(ctx, message, "error", err, "error_kind", application.ErrorKind(err))
	b.responder.handleServiceError(ctx, w, err)
}

// readJSON decodes the request body into dst and answers 400 when it cannot.
func (b base) readJSON(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.log(r.Context(), operation, "error_kind", "bad_request", "limit", tooLarge.Limit).
			WarnContext(r.Context(), "request body too large")
	} else {
		b.log(r.Context(), operation, "error_kind", "bad_request").
			WarnContext(r.Context(), "failed to decode request body", "error", err)
	}
	b.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
	return false
}

// pathID returns the trimmed {id} wildcard, writing 400 with missing when it is blank.
func (b base) pathID(w http.ResponseWriter, r *http.Request, operation string, missing error) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		b.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing path id")
		b.responder.writeError(r.Context(), w, http.StatusBadRequest, missing)
		return "", false
	}
	return id, true
}

func unavailable(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
