package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/services/mail"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return database.ErrUserExists
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeUserStore) VerifyByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.IsVerified = true
			u.VerificationToken = nil
			return nil
		}
	}
	return database.ErrNotFound
}

type fakeTodoStore struct {
	mu     sync.Mutex
	nextID int64
	todos  map[int64]*models.Todo
	err    error
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{todos: make(map[int64]*models.Todo)}
}

func (s *fakeTodoStore) ListByUser(_ context.Context, userID int64) ([]*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.Todo, 0)
	for _, t := range s.todos {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *fakeTodoStore) Create(_ context.Context, todo *models.Todo) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	c := *todo
	c.ID = s.nextID
	if c.Priority == "" {
		c.Priority = models.PriorityMedium
	}
	if c.Progress == "" {
		c.Progress = models.ProgressTodo
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.todos[c.ID] = &c
	out := c
	return &out, nil
}

func (s *fakeTodoStore) Update(_ context.Context, id, userID int64, u models.TodoUpdate) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = u.Description
	}
	if u.StartTime != nil {
		t.StartTime = u.StartTime
	}
	if u.EndTime != nil {
		t.EndTime = u.EndTime
	}
	if u.Due != nil {
		t.Due = u.Due
	}
	if u.Labels != nil {
		t.Labels = u.Labels
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Message != nil {
		t.Message = u.Message
	}
	if u.Confidence != nil {
		t.Confidence = u.Confidence
	}
	if u.CreatedBy != nil {
		t.CreatedBy = u.CreatedBy
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	c := *t
	return &c, nil
}

func (s *fakeTodoStore) Delete(_ context.Context, id, userID int64) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	delete(s.todos, id)
	return t, nil
}

type fakeGenerator struct {
	result  models.GeneratedTodo
	enabled bool
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) models.GeneratedTodo {
	g.prompts = append(g.prompts, prompt)
	return g.result
}

func (g *fakeGenerator) Enabled() bool { return g.enabled }
func (g *fakeGenerator) Model() string { return "deepseek/test" }

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeEnqueuer struct {
	jobs []*queue.Job
	err  error
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID int64) (string, error) {
	if userID <= 0 {
		return "", errors.New("bad user")
	}
	return "token-for-user", nil
}

// withUser stands in for the auth middleware.
func withUser(user *models.User) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user != nil {
				r = r.WithContext(request.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
