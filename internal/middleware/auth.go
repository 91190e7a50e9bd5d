package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/services/auth"
)

// TokenVerifier checks bearer tokens
type TokenVerifier interface {
	Verify(token string) (*models.JWTClaims, error)
}

// UserLoader loads the account a token refers to
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Auth creates authentication middleware that validates JWT bearer tokens and
// attaches the account to the request context.
func Auth(tokens TokenVerifier, users UserLoader, cache *UserCache, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apperr.Write(w, apperr.New(apperr.Unauthorized))
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				apperr.Write(w, tokenError(err))
				return
			}

			user, ok := cache.Get(claims.UserID)
			if !ok {
				user, err = users.GetByID(r.Context(), claims.UserID)
				if err != nil {
					if errors.Is(err, database.ErrNotFound) {
						apperr.Write(w, apperr.New(apperr.AuthInvalidToken))
						return
					}
					logger.Error("auth_user_lookup_failed",
						zap.Int64("user_id", claims.UserID),
						zap.Error(err),
					)
					apperr.Write(w, apperr.Wrap(apperr.Internal, err))
					return
				}
				if user.IsVerified {
					cache.Add(user)
				}
			}

			if !user.IsVerified {
				apperr.Write(w, apperr.New(apperr.AuthEmailNotVerified))
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenError(err error) *apperr.Error {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return apperr.New(apperr.AuthTokenExpired)
	case errors.Is(err, auth.ErrInvalidToken):
		return apperr.New(apperr.AuthInvalidToken)
	default:
		return apperr.Wrap(apperr.Unauthorized, err)
	}
}
