package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/services/auth"
)

func newAuthRouter(users *fakeUserStore, jobs JobEnqueuer, mailer *fakeMailer, user *models.User) *mux.Router {
	h := NewAuthHandler(users, fakeTokens{}, jobs, mailer, "https://verveo.example", zap.NewNop())
	r := mux.NewRouter()
	authRouter := r.PathPrefix("/auth").Subrouter()
	h.RegisterRoutes(authRouter)
	me := authRouter.PathPrefix("").Subrouter()
	me.Use(withUser(user))
	me.HandleFunc("/me", h.GetMe).Methods("GET")
	return r
}

func seedUser(t *testing.T, users *fakeUserStore, email, password string, verified bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Email: email, PasswordHash: hash, Name: "Lan", IsVerified: verified}
	if err := users.Create(t.Context(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestAuthHandler_Register_Queued(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	jobs := &fakeEnqueuer{}
	mailer := &fakeMailer{}
	router := newAuthRouter(users, jobs, mailer, nil)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"email":"Lan@Example.com","password":"secret1","name":"Lan"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RegisterResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.UserID != 1 {
		t.Errorf("Expected userId 1, got %d", resp.UserID)
	}

	stored, err := users.GetByEmail(t.Context(), "lan@example.com")
	if err != nil {
		t.Fatalf("Expected user stored under lower-cased email: %v", err)
	}
	if stored.IsVerified {
		t.Error("Expected new user to be unverified")
	}
	if stored.PasswordHash == "secret1" {
		t.Error("Expected password to be hashed")
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("Expected one queued job, got %d", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.Type != queue.JobTypeSendVerificationEmail || job.Email != "lan@example.com" {
		t.Errorf("Unexpected job %+v", job)
	}
	if stored.VerificationToken == nil || job.Token != *stored.VerificationToken {
		t.Error("Expected job token to match the stored verification token")
	}
	if len(mailer.sent) != 0 {
		t.Error("Expected no inline e-mail when the queue accepts the job")
	}
}

func TestAuthHandler_Register_InlineFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		jobs JobEnqueuer
	}{
		{name: "no queue", jobs: nil},
		{name: "enqueue fails", jobs: &fakeEnqueuer{err: errors.New("channel closed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mailer := &fakeMailer{}
			router := newAuthRouter(newFakeUserStore(), tt.jobs, mailer, nil)

			w := doJSON(t, router, http.MethodPost, "/auth/register",
				`{"email":"an@example.com","password":"secret1","name":"An"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if len(mailer.sent) != 1 {
				t.Fatalf("Expected one inline e-mail, got %d", len(mailer.sent))
			}
			msg := mailer.sent[0]
			if msg.To != "an@example.com" {
				t.Errorf("Unexpected recipient %q", msg.To)
			}
			if !strings.Contains(msg.HTML, "https://verveo.example/auth/verify?token=") {
				t.Errorf("Expected verification link in body, got %q", msg.HTML)
			}
		})
	}
}

func TestAuthHandler_Register_MailFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{err: errors.New("smtp down")}
	router := newAuthRouter(newFakeUserStore(), nil, mailer, nil)

	w := doJSON(t, router, http.MethodPost, "/auth/register",
		`{"email":"an@example.com","password":"secret1","name":"An"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	seedUser(t, users, "taken@example.com", "secret1", true)
	router := newAuthRouter(users, nil, &fakeMailer{}, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    apperr.Key
	}{
		{
			name:       "duplicate email",
			body:       `{"email":"taken@example.com","password":"secret1","name":"X"}`,
			wantStatus: http.StatusConflict,
			wantKey:    apperr.AuthUserExists,
		},
		{
			name:       "short password",
			body:       `{"email":"new@example.com","password":"12345","name":"X"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKey:    apperr.RequestInvalid,
		},
		{
			name:       "bad email",
			body:       `{"email":"not-an-email","password":"secret1","name":"X"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKey:    apperr.RequestInvalid,
		},
		{
			name:       "missing name",
			body:       `{"email":"new@example.com","password":"secret1"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKey:    apperr.RequestInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/auth/register", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if key := decodeErrorKey(t, w); key != tt.wantKey {
				t.Errorf("Expected %s, got %s", tt.wantKey, key)
			}
		})
	}
}

func TestAuthHandler_Verify(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	token := "verify-me"
	u := &models.User{Email: "v@example.com", Name: "V", VerificationToken: &token}
	if err := users.Create(t.Context(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newAuthRouter(users, nil, &fakeMailer{}, nil)

	w := doJSON(t, router, http.MethodGet, "/auth/verify?token=verify-me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	stored, _ := users.GetByID(t.Context(), u.ID)
	if !stored.IsVerified {
		t.Error("Expected user to be verified")
	}

	w = doJSON(t, router, http.MethodGet, "/auth/verify?token=verify-me", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected reused token to be rejected with 401, got %d", w.Code)
	}
	if key := decodeErrorKey(t, w); key != apperr.AuthInvalidToken {
		t.Errorf("Expected %s, got %s", apperr.AuthInvalidToken, key)
	}

	w = doJSON(t, router, http.MethodGet, "/auth/verify", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected missing token to be 422, got %d", w.Code)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	users := newFakeUserStore()
	seedUser(t, users, "ok@example.com", "secret1", true)
	seedUser(t, users, "pending@example.com", "secret1", false)
	router := newAuthRouter(users, nil, &fakeMailer{}, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    apperr.Key
	}{
		{name: "success", body: `{"email":"OK@example.com","password":"secret1"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"email":"ok@example.com","password":"nope"}`, wantStatus: http.StatusUnauthorized, wantKey: apperr.AuthInvalidCredentials},
		{name: "unknown email", body: `{"email":"who@example.com","password":"secret1"}`, wantStatus: http.StatusUnauthorized, wantKey: apperr.AuthInvalidCredentials},
		{name: "unverified", body: `{"email":"pending@example.com","password":"secret1"}`, wantStatus: http.StatusForbidden, wantKey: apperr.AuthEmailNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := doJSON(t, router, http.MethodPost, "/auth/login", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantKey != "" {
				if key := decodeErrorKey(t, w); key != tt.wantKey {
					t.Errorf("Expected %s, got %s", tt.wantKey, key)
				}
				return
			}
			var resp LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Token != "token-for-user" || resp.User.Email != "ok@example.com" {
				t.Errorf("Unexpected login response %+v", resp)
			}
		})
	}
}

func TestAuthHandler_GetMe(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: 4, Email: "me@example.com", Name: "Me", PasswordHash: "hash"}
	router := newAuthRouter(newFakeUserStore(), nil, &fakeMailer{}, user)

	w := doJSON(t, router, http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "hash") {
		t.Error("Expected password hash to stay out of the response")
	}
	var got models.PublicUser
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode user: %v", err)
	}
	if got.ID != 4 || got.Email != "me@example.com" {
		t.Errorf("Unexpected user %+v", got)
	}
}
