package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/verveo/todo-generator/internal/apperr"
)

const (
	// DefaultRequestTimeout bounds a request; it must exceed the completion timeout
	DefaultRequestTimeout = 45 * time.Second
)

// Timeout creates a middleware that enforces a timeout on request handlers.
// A request that runs out of time gets a 503 with an error.internal payload.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	e := apperr.New(apperr.Internal).WithDescription("Request timed out")
	e.Status = http.StatusServiceUnavailable
	body, err := json.Marshal(e.Payload())
	if err != nil {
		body = []byte(`{"status":1}`)
	}

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// TimeoutHandler writes its body without a content type
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}
