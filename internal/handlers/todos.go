package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/datetime"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/validation"
)

// TodoHandler handles todo-related requests
type TodoHandler struct {
	todoRepo  database.TodoStore
	generator TodoGenerator
	clock     datetime.Clock
	logger    *zap.Logger
}

// NewTodoHandler creates a new todo handler. clock is the zone generated
// timestamps are interpreted in.
func NewTodoHandler(todoRepo database.TodoStore, generator TodoGenerator, clock datetime.Clock, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todoRepo: todoRepo, generator: generator, clock: clock, logger: logger}
}

// RegisterRoutes registers todo routes on the given router
// The router should already have the /todos prefix and the auth middleware
func (h *TodoHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTodos).Methods("GET")
	r.HandleFunc("", h.CreateTodo).Methods("POST")
	r.HandleFunc("/create-manual", h.CreateManualTodo).Methods("POST")
	r.HandleFunc("/{id}", h.UpdateTodo).Methods("PUT")
	r.HandleFunc("/{id}", h.DeleteTodo).Methods("DELETE")
}

// CreateManualTodoRequest represents a hand-entered todo
type CreateManualTodoRequest struct {
	Title       string     `json:"title" validate:"required,notblank,max=255"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Due         *time.Time `json:"due"`
	Labels      []string   `json:"labels" validate:"omitempty,max=20,dive,max=50"`
	Priority    string     `json:"priority" validate:"omitempty,priority"`
	Message     *string    `json:"message"`
}

// UpdateTodoRequest represents an update todo request. Absent fields are
// left unchanged.
type UpdateTodoRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Labels      []string   `json:"labels,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Priority    *string    `json:"priority,omitempty" validate:"omitempty,priority"`
	Message     *string    `json:"message,omitempty"`
	Confidence  *float64   `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	CreatedBy   *string    `json:"created_by,omitempty" validate:"omitempty,notblank,max=100"`
	Progress    *string    `json:"progress,omitempty" validate:"omitempty,progress"`
}

// DeleteTodoResponse is the body returned after a delete
type DeleteTodoResponse struct {
	Message     string       `json:"message"`
	DeletedTodo *models.Todo `json:"deletedTodo"`
}

// ListTodos lists todos for the authenticated user, newest first
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	todos, err := h.todoRepo.ListByUser(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, todos)
}

// CreateTodo generates a todo from a prompt and stores it for the user
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	prompt, err := decodePrompt(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	generated := h.generator.Generate(r.Context(), prompt)
	saved, err := h.todoRepo.Create(r.Context(), h.todoFromGenerated(user.ID, generated))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("todo_created",
		zap.Int64("todo_id", saved.ID),
		zap.Int64("user_id", user.ID),
		zap.Bool("model_derived", generated.ModelDerived()),
	)
	respondJSON(w, http.StatusOK, saved)
}

// todoFromGenerated maps a generated record onto a new todo. The due time
// is the start time; timestamps that do not parse are stored as NULL.
func (h *TodoHandler) todoFromGenerated(userID int64, g models.GeneratedTodo) *models.Todo {
	priority := g.Priority
	if !priority.Valid() {
		priority = models.PriorityMedium
	}
	confidence := g.Confidence

	todo := &models.Todo{
		UserID:      userID,
		Title:       g.Title,
		Description: optionalString(g.Description),
		StartTime:   h.parseTime(g.StartTime),
		EndTime:     h.parseTime(g.EndTime),
		Labels:      validation.SanitizeLabels(g.Labels),
		Priority:    priority,
		Message:     optionalString(g.Message),
		Confidence:  &confidence,
		CreatedBy:   g.CreatedBy,
		Progress:    models.ProgressTodo,
	}
	todo.Due = todo.StartTime
	return todo
}

func (h *TodoHandler) parseTime(value string) *time.Time {
	t, ok := h.clock.Parse(value)
	if !ok {
		return nil
	}
	return &t
}

// CreateManualTodo stores a hand-entered todo
func (h *TodoHandler) CreateManualTodo(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	var req CreateManualTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	createdBy := models.CreatedByUser
	confidence := 1.0
	todo := &models.Todo{
		UserID:      user.ID,
		Title:       validation.SanitizeText(req.Title),
		Description: sanitizeOptional(req.Description),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Due:         req.Due,
		Labels:      validation.SanitizeLabels(req.Labels),
		Priority:    models.Priority(req.Priority),
		Message:     sanitizeOptional(req.Message),
		Confidence:  &confidence,
		CreatedBy:   &createdBy,
		Progress:    models.ProgressTodo,
	}
	if todo.Due == nil {
		todo.Due = todo.StartTime
	}

	saved, err := h.todoRepo.Create(r.Context(), todo)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, saved)
}

// UpdateTodo applies a partial update to a todo owned by the user
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req UpdateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	update := models.TodoUpdate{
		Description: sanitizeOptional(req.Description),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Due:         req.Due,
		Labels:      validation.SanitizeLabels(req.Labels),
		Message:     sanitizeOptional(req.Message),
		Confidence:  req.Confidence,
		CreatedBy:   sanitizeOptional(req.CreatedBy),
	}
	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		update.Title = &title
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		update.Priority = &p
	}
	if req.Progress != nil {
		p := models.Progress(*req.Progress)
		update.Progress = &p
	}

	updated, err := h.todoRepo.Update(r.Context(), id, user.ID, update)
	if err != nil {
		respondError(w, r, h.logger, todoError(err))
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// DeleteTodo deletes a todo owned by the user
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondError(w, r, h.logger, apperr.New(apperr.Unauthorized))
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	deleted, err := h.todoRepo.Delete(r.Context(), id, user.ID)
	if err != nil {
		respondError(w, r, h.logger, todoError(err))
		return
	}

	respondJSON(w, http.StatusOK, DeleteTodoResponse{
		Message:     "Todo deleted successfully",
		DeletedTodo: deleted,
	})
}

// todoError maps repository misses to error.todo.not_found.
func todoError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.Wrap(apperr.TodoNotFound, err)
	}
	return err
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := validation.SanitizeText(*s)
	return &clean
}
