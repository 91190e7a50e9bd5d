package middleware

import (
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/request"
)

// Audit logs security-related events for monitoring. proxies may be nil.
func Audit(logger *zap.Logger, proxies *request.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := func() []zap.Field {
				return []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("ip", logpkg.SanitizeString(proxies.ClientIP(r), logpkg.MaxGeneralStringLength)),
					zap.String("request_id", request.RequestIDFromContext(r.Context())),
				}
			}

			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				logger.Warn("security_event", append(fields(), zap.Int("status_code", wrapped.statusCode))...)
			case http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation", fields()...)
			}
		})
	}
}
