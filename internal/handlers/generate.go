package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/models"
)

// TodoGenerator turns a free-text prompt into a structured todo. It never
// fails; when the model is unavailable a locally synthesized record is returned.
type TodoGenerator interface {
	Generate(ctx context.Context, prompt string) models.GeneratedTodo
	Enabled() bool
	Model() string
}

// GenerateHandler serves the unauthenticated generation endpoint
type GenerateHandler struct {
	generator TodoGenerator
	logger    *zap.Logger
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(generator TodoGenerator, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{generator: generator, logger: logger}
}

// RegisterRoutes registers the generation route
func (h *GenerateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/gen_todo", h.GenerateTodo).Methods("POST")
}

// PromptRequest is the body of generation requests
type PromptRequest struct {
	Prompt string `json:"prompt" validate:"required,notblank"`
}

// GenerateTodo handles POST /gen_todo
func (h *GenerateHandler) GenerateTodo(w http.ResponseWriter, r *http.Request) {
	prompt, err := decodePrompt(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.generator.Generate(r.Context(), prompt))
}

// decodePrompt reads a PromptRequest and returns the trimmed prompt. A
// missing, blank or oversized prompt is error.request.invalid.
func decodePrompt(r *http.Request) (string, error) {
	var req PromptRequest
	if err := decodeJSON(r, &req); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Key == apperr.RequestInvalid {
			return "", appErr.WithDescription("Prompt is required and must be a non-empty string")
		}
		return "", err
	}
	return strings.TrimSpace(req.Prompt), nil
}
