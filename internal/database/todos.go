package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/verveo/todo-generator/internal/models"
)

// TodoRepository handles todo database operations
type TodoRepository struct {
	db *DB
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

const todoColumns = `id, user_id, title, description, start_time, end_time, due, labels,
	priority, message, confidence, created_by, progress, created_at, updated_at`

func scanTodo(row interface{ Scan(...any) error }) (*models.Todo, error) {
	t := &models.Todo{}
	var (
		description, message, createdBy sql.NullString
		startTime, endTime, due         sql.NullTime
		confidence                      sql.NullFloat64
		labels                          pq.StringArray
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&description,
		&startTime,
		&endTime,
		&due,
		&labels,
		&t.Priority,
		&message,
		&confidence,
		&createdBy,
		&t.Progress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = nullString(description)
	t.Message = nullString(message)
	t.CreatedBy = nullString(createdBy)
	t.StartTime = nullTime(startTime)
	t.EndTime = nullTime(endTime)
	t.Due = nullTime(due)
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	if labels != nil {
		t.Labels = []string(labels)
	}
	return t, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// labelsArg keeps absent labels NULL rather than an empty array.
func labelsArg(labels []string) any {
	if labels == nil {
		return nil
	}
	return pq.Array(labels)
}

// ListByUser returns a user's todos, newest first.
func (r *TodoRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	todos := make([]*models.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// Create inserts a todo and returns the stored row.
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) (*models.Todo, error) {
	if todo.Priority == "" {
		todo.Priority = models.PriorityMedium
	}
	if todo.Progress == "" {
		todo.Progress = models.ProgressTodo
	}

	query := `
		INSERT INTO todos (user_id, title, description, start_time, end_time, due, labels,
			priority, message, confidence, created_by, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + todoColumns

	saved, err := scanTodo(r.db.QueryRowContext(ctx, query,
		todo.UserID,
		todo.Title,
		todo.Description,
		todo.StartTime,
		todo.EndTime,
		todo.Due,
		labelsArg(todo.Labels),
		todo.Priority,
		todo.Message,
		todo.Confidence,
		todo.CreatedBy,
		todo.Progress,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return saved, nil
}

// GetForUser returns a todo owned by userID. Todos of other users are
// reported as ErrNotFound.
func (r *TodoRepository) GetForUser(ctx context.Context, id, userID int64) (*models.Todo, error) {
	t, err := scanTodo(r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return t, nil
}

// Update applies the non-nil fields of update to a todo owned by userID and
// returns the stored row. An empty update returns the todo unchanged.
func (r *TodoRepository) Update(ctx context.Context, id, userID int64, update models.TodoUpdate) (*models.Todo, error) {
	if update.Empty() {
		return r.GetForUser(ctx, id, userID)
	}

	set, args := buildTodoUpdate(update)
	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE todos SET %s, updated_at = NOW() WHERE id = $%d AND user_id = $%d RETURNING %s`,
		set, len(args)-1, len(args), todoColumns)

	t, err := scanTodo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return t, nil
}

// buildTodoUpdate renders the SET list for the non-nil fields, numbering
// placeholders from $1.
func buildTodoUpdate(u models.TodoUpdate) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.StartTime != nil {
		add("start_time", *u.StartTime)
	}
	if u.EndTime != nil {
		add("end_time", *u.EndTime)
	}
	if u.Due != nil {
		add("due", *u.Due)
	}
	if u.Labels != nil {
		add("labels", pq.Array(u.Labels))
	}
	if u.Priority != nil {
		add("priority", string(*u.Priority))
	}
	if u.Message != nil {
		add("message", *u.Message)
	}
	if u.Confidence != nil {
		add("confidence", *u.Confidence)
	}
	if u.CreatedBy != nil {
		add("created_by", *u.CreatedBy)
	}
	if u.Progress != nil {
		add("progress", string(*u.Progress))
	}
	return strings.Join(sets, ", "), args
}

// Delete removes a todo owned by userID and returns it as it was.
func (r *TodoRepository) Delete(ctx context.Context, id, userID int64) (*models.Todo, error) {
	t, err := scanTodo(r.db.QueryRowContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2 RETURNING `+todoColumns, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete todo: %w", err)
	}
	return t, nil
}
