package models

import (
	"time"
)

// Priority ranks how urgent a todo is
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Progress tracks where a todo is in its lifecycle
type Progress string

const (
	ProgressTodo       Progress = "todo"
	ProgressInProgress Progress = "inprogress"
	ProgressDone       Progress = "done"
)

// Valid reports whether p is one of the known progress states.
func (p Progress) Valid() bool {
	switch p {
	case ProgressTodo, ProgressInProgress, ProgressDone:
		return true
	}
	return false
}

// CreatedByUser marks todos entered by hand rather than generated.
const CreatedByUser = "User"

// Todo represents a persisted todo item
type Todo struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Due         *time.Time `json:"due"`
	Labels      []string   `json:"labels"`
	Priority    Priority   `json:"priority"`
	Message     *string    `json:"message"`
	Confidence  *float64   `json:"confidence"`
	CreatedBy   *string    `json:"created_by"`
	Progress    Progress   `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TodoUpdate carries the fields of a partial update. Nil fields are left
// unchanged.
type TodoUpdate struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Due         *time.Time
	Labels      []string
	Priority    *Priority
	Message     *string
	Confidence  *float64
	CreatedBy   *string
	Progress    *Progress
}

// Empty reports whether the update changes nothing.
func (u TodoUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.StartTime == nil &&
		u.EndTime == nil && u.Due == nil && u.Labels == nil && u.Priority == nil &&
		u.Message == nil && u.Confidence == nil && u.CreatedBy == nil && u.Progress == nil
}
