package database

import (
	"context"

	"github.com/verveo/todo-generator/internal/models"
)

// UserStore is the user persistence used by handlers and middleware
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	VerifyByToken(ctx context.Context, token string) error
}

// TodoStore is the todo persistence used by handlers
type TodoStore interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Todo, error)
	Create(ctx context.Context, todo *models.Todo) (*models.Todo, error)
	Update(ctx context.Context, id, userID int64, update models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, id, userID int64) (*models.Todo, error)
}

// RatelimitConfigStore reads stored limiter rates
type RatelimitConfigStore interface {
	Get(ctx context.Context, key string) (*models.RatelimitConfig, error)
}

var (
	_ UserStore            = (*UserRepository)(nil)
	_ TodoStore            = (*TodoRepository)(nil)
	_ RatelimitConfigStore = (*RatelimitConfigRepository)(nil)
)
