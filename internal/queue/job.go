package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeSendVerificationEmail delivers the account verification link to a new user
	JobTypeSendVerificationEmail JobType = "send_verification_email"
)

const (
	// DefaultMaxRetries is the number of redeliveries before a job is dead-lettered
	DefaultMaxRetries = 3
	// BaseRetryDelay is the backoff applied before the first retry
	BaseRetryDelay = 5 * time.Second
	// MaxRetryDelay caps the exponential backoff
	MaxRetryDelay = 5 * time.Minute
)

var (
	ErrUnknownJobType = errors.New("unknown job type")
	ErrMissingEmail   = errors.New("job has no recipient email")
	ErrMissingToken   = errors.New("job has no verification token")
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     int64      `json:"user_id"`
	Email      string     `json:"email"`
	Token      string     `json:"token"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewVerificationEmailJob creates a job that sends the verification link for token to email.
func NewVerificationEmailJob(userID int64, email, token string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeSendVerificationEmail,
		UserID:     userID,
		Email:      email,
		Token:      token,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate reports whether the job carries everything its handler needs.
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeSendVerificationEmail:
		if j.Email == "" {
			return ErrMissingEmail
		}
		if j.Token == "" {
			return ErrMissingToken
		}
		return nil
	default:
		return ErrUnknownJobType
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryDelay returns the exponential backoff for the job's current retry count.
func (j *Job) RetryDelay() time.Duration {
	delay := BaseRetryDelay
	for i := 1; i < j.RetryCount; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return delay
}

// ScheduleRetry bumps the retry count and defers the job by its backoff.
func (j *Job) ScheduleRetry(now time.Time) {
	j.IncrementRetry()
	notBefore := now.Add(j.RetryDelay())
	j.NotBefore = &notBefore
}
