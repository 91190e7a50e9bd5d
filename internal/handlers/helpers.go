package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	logpkg "github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/validation"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes err as a catalog payload. Server-side failures are
// logged with their cause; the client only sees the catalog description.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	written := apperr.Write(w, err)
	if written.Status >= http.StatusInternalServerError {
		logger.Error("request_failed",
			zap.String("error_key", string(written.Key)),
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("request_id", request.RequestIDFromContext(r.Context())),
			zap.String("error", logpkg.SanitizeError(written)),
		)
	}
}

// decodeJSON decodes the request body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.RequestInvalid).WithDescription("Request body is required")
		}
		return apperr.Wrap(apperr.RequestInvalid, err)
	}
	return validation.Struct(dst)
}

// pathID reads a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.RequestInvalid).WithDescription("Invalid " + name)
	}
	return id, nil
}
