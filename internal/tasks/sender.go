package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/meridianlaw/caseflow/internal/auth"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/meridianlaw/caseflow/internal/mailer"
	"github.com/meridianlaw/caseflow/pkg/queue"
)

// QueueSender enqueues reset emails for the worker. Used when Redis is
// available.
type QueueSender struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewQueueSender(client *asynq.Client, logger *slog.Logger) *QueueSender {
	return &QueueSender{client: client, logger: logger}
}

func (s *QueueSender) SendPasswordReset(ctx context.Context, user *models.User, plaintextToken, resetURL string) error {
	task, err := NewResetEmailTask(ResetEmailPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.FirstName,
		Token:    plaintextToken,
		ResetURL: resetURL,
	})
	if err != nil {
		return fmt.Errorf("build reset email task: %w", err)
	}

	info, err := s.client.EnqueueContext(ctx, task, asynq.Queue(queue.Critical), asynq.MaxRetry(3))
	if err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}

	s.logger.Info("reset email enqueued", "task_id", info.ID, "user_id", user.ID)
	return nil
}

// MailSender delivers the reset email inline, without a queue. Used when
// the server runs without Redis.
type MailSender struct {
	handler *Handler
}

func NewMailSender(m mailer.Mailer, logger *slog.Logger) *MailSender {
	return &MailSender{handler: &Handler{logger: logger, mailer: m}}
}

func (s *MailSender) SendPasswordReset(ctx context.Context, user *models.User, plaintextToken, resetURL string) error {
	task, err := NewResetEmailTask(ResetEmailPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Name:     user.FirstName,
		Token:    plaintextToken,
		ResetURL: resetURL,
	})
	if err != nil {
		return err
	}
	return s.handler.HandleResetEmail(ctx, task)
}

var (
	_ auth.ResetSender = (*QueueSender)(nil)
	_ auth.ResetSender = (*MailSender)(nil)
)
