package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/database"
	logpkg "github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/services/auth"
	"github.com/verveo/todo-generator/internal/services/mail"
)

// TokenIssuer signs access tokens
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// JobEnqueuer publishes background jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users  database.UserStore
	tokens TokenIssuer
	jobs   JobEnqueuer
	mailer mail.Mailer
	appURL string
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler. jobs may be nil, in which case
// verification e-mails are sent inline through mailer.
func NewAuthHandler(users database.UserStore, tokens TokenIssuer, jobs JobEnqueuer, mailer mail.Mailer, appURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		jobs:   jobs,
		mailer: mailer,
		appURL: appURL,
		logger: logger,
	}
}

// RegisterRoutes registers the public auth routes on the given router
// The router should already have the /auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/verify", h.Verify).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
}

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,notblank,max=255"`
}

// RegisterResponse is returned after a successful sign-up
type RegisterResponse struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token and the public user
type LoginResponse struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// Register creates an unverified account and sends its verification e-mail
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	token := auth.NewVerificationToken()
	user := &models.User{
		Email:             normalizeEmail(req.Email),
		PasswordHash:      hash,
		Name:              strings.TrimSpace(req.Name),
		VerificationToken: &token,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			respondError(w, r, h.logger, apperr.Wrap(apperr.AuthUserExists, err))
			return
		}
		respondError(w, r, h.logger, err)
		return
	}

	h.sendVerification(r.Context(), user, token)

	respondJSON(w, http.StatusOK, RegisterResponse{
		UserID:  user.ID,
		Message: "User created. Please check your email to verify.",
	})
}

// sendVerification queues the verification e-mail, falling back to an
// inline send. Failures are logged; the account stays registered.
func (h *AuthHandler) sendVerification(ctx context.Context, user *models.User, token string) {
	if h.jobs != nil {
		err := h.jobs.Enqueue(ctx, queue.NewVerificationEmailJob(user.ID, user.Email, token))
		if err == nil {
			h.logger.Info("email_job_enqueued", zap.Int64("user_id", user.ID))
			return
		}
		h.logger.Warn("email_job_enqueue_failed",
			zap.Int64("user_id", user.ID),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}

	if h.mailer == nil {
		h.logger.Error("verification_email_not_sent", zap.Int64("user_id", user.ID), zap.String("reason", "no mailer"))
		return
	}
	msg, err := mail.VerificationMessage(h.appURL, user.Email, token)
	if err == nil {
		err = h.mailer.Send(ctx, msg)
	}
	if err != nil {
		h.logger.Error("verification_email_not_sent",
			zap.Int64("user_id", user.ID),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return
	}
	h.logger.Info("verification_email_sent", zap.Int64("user_id", user.ID))
}

// Verify marks the account owning the token as verified
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		respondError(w, r, h.logger, apperr.New(apperr.RequestInvalid).WithDescription("Verification token is required"))
		return
	}

	if err := h.users.VerifyByToken(r.Context(), token); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, r, h.logger, apperr.Wrap(apperr.AuthInvalidToken, err))
			return
		}
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

// Login exchanges credentials for an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.logger.Info("login_failed", zap.String("email", logpkg.SanitizeEmail(req.Email)))
			respondError(w, r, h.logger, apperr.New(apperr.AuthInvalidCredentials))
			return
		}
		respondError(w, r, h.logger, err)
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !ok {
		h.logger.Info("login_failed", zap.Int64("user_id", user.ID))
		respondError(w, r, h.logger, apperr.New(apperr.AuthInvalidCredentials))
		return
	}
	if !user.IsVerified {
		respondError(w, r, h.logger, apperr.New(apperr.AuthEmailNotVerified))
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user.Public()})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	respondJSON(w, http.StatusOK, user.Public())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
