package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	logpkg "github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/request"
)

// ErrorHandler recovers handler panics and answers with error.internal
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					// Log panic details server-side but don't expose to client
					logger.Error("panic_recovered",
						zap.Any("error", rec),
						zap.String("path", logpkg.SanitizePath(r.URL.Path)),
						zap.String("method", r.Method),
						zap.String("request_id", request.RequestIDFromContext(r.Context())),
					)
					apperr.Write(w, apperr.New(apperr.Internal))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
