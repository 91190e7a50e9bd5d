package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/services/mail"
)

// Enqueuer re-publishes jobs that need a delayed retry.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// EmailSender processes e-mail jobs from the queue
type EmailSender struct {
	mailer   mail.Mailer
	jobQueue Enqueuer
	appURL   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewEmailSender creates a new e-mail sender. jobQueue may be nil, in which
// case failed jobs are requeued immediately instead of with backoff.
func NewEmailSender(mailer mail.Mailer, jobQueue Enqueuer, appURL string, zapLogger *zap.Logger) *EmailSender {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &EmailSender{
		mailer:   mailer,
		jobQueue: jobQueue,
		appURL:   appURL,
		logger:   zapLogger,
		now:      time.Now,
	}
}

// Run drains msgs until ctx is cancelled or the channel closes.
func (s *EmailSender) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				s.logger.Info("message_channel_closed")
				return
			}
			if err := s.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				s.logger.Error("job_failed",
					zap.Error(err),
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
				)
			}
		}
	}
}

// ProcessJob processes a job based on its type
func (s *EmailSender) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if err := job.Validate(); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("rejected job %s: %w", job.ID, err)
	}

	switch job.Type {
	case queue.JobTypeSendVerificationEmail:
		if err := s.sendVerification(ctx, job); err != nil {
			return s.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (s *EmailSender) sendVerification(ctx context.Context, job *queue.Job) error {
	message, err := mail.VerificationMessage(s.appURL, job.Email, job.Token)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, message); err != nil {
		return err
	}
	s.logger.Info("verification_email_sent",
		zap.String("job_id", job.ID.String()),
		zap.Int64("user_id", job.UserID),
		zap.String("email", logger.SanitizeEmail(job.Email)),
	)
	return nil
}

// handleJobError retries with backoff through the queue when it can, and
// dead-letters the job once retries are exhausted.
func (s *EmailSender) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if errors.Is(err, context.Canceled) {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return err
	}

	if !job.CanRetry() {
		s.logger.Warn("job_dead_lettered",
			zap.String("job_id", job.ID.String()),
			zap.Int("retries", job.RetryCount),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	if s.jobQueue == nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	retry := *job
	retry.ScheduleRetry(s.now())

	if enqueueErr := s.jobQueue.Enqueue(ctx, &retry); enqueueErr != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Warn("nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		s.logger.Warn("ack_failed", zap.Error(ackErr))
	}

	s.logger.Info("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Timep("not_before", retry.NotBefore),
	)
	return fmt.Errorf("job failed (will retry): %w", err)
}
