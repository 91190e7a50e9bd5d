package middleware

import (
	"net/http"

	"github.com/verveo/todo-generator/internal/apperr"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size (64KB).
	// Prompts and todo payloads are small.
	DefaultMaxRequestSize int64 = 64 << 10
)

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				e := apperr.New(apperr.RequestInvalid).WithDescription("Request body too large")
				e.Status = http.StatusRequestEntityTooLarge
				apperr.Write(w, e)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
