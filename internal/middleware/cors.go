package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// CORS creates CORS middleware backed by rs/cors. A "*" entry allows any
// origin; credentials are only allowed for explicit origin lists.
func CORS(allowedOrigins []string, logger *zap.Logger) func(http.Handler) http.Handler {
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
			break
		}
	}

	logger.Info("cors_configured",
		zap.Strings("allowed_origins", allowedOrigins),
		zap.Bool("wildcard", wildcard),
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: !wildcard,
		MaxAge:           86400,
	})
	return c.Handler
}
