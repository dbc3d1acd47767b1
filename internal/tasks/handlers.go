package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/meridianlaw/caseflow/internal/mailer"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	mailer mailer.Mailer
}

func NewHandler(db *gorm.DB, logger *slog.Logger, m mailer.Mailer) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		mailer: m,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeResetEmail, h.HandleResetEmail)
	mux.HandleFunc(TypeDueReminder, h.HandleDueReminder)
}

// HandleResetEmail delivers the password reset mail. The token embedded in
// the payload expires ten minutes after it was minted, so this runs on the
// critical queue.
func (h *Handler) HandleResetEmail(ctx context.Context, t *asynq.Task) error {
	var payload ResetEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("sending password reset email", "user_id", payload.UserID)

	msg := mailer.Message{
		To:      payload.Email,
		Subject: "Your password reset token (valid for 10 minutes)",
		Body: fmt.Sprintf(
			"Hi %s,\n\nForgot your password? Submit a PATCH request with your new password to:\n\n%s\n\nIf you didn't request a reset, please ignore this email.\n",
			payload.Name, payload.ResetURL,
		),
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("reset email delivery failed", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}

// HandleDueReminder sweeps for open cases due inside the look-ahead window
// and emails each assignee a digest of their cases. Cases without an
// assignee are logged and skipped.
func (h *Handler) HandleDueReminder(ctx context.Context, t *asynq.Task) error {
	var payload DueReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	days := payload.Days
	if days <= 0 {
		days = 30
	}

	now := time.Now()
	until := now.AddDate(0, 0, days)

	var due []models.Case
	err := h.db.WithContext(ctx).
		Preload("AssignedTo").
		Where("due_date >= ? AND due_date <= ?", now, until).
		Where("status NOT IN ?", []models.CaseStatus{
			models.StatusApproved, models.StatusDenied, models.StatusClosed,
		}).
		Where("is_archived = ?", false).
		Order("due_date ASC").
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("query due cases: %w", err)
	}

	h.logger.Info("due reminder sweep", "window_days", days, "cases", len(due))

	byAssignee := make(map[string][]models.Case)
	for _, c := range due {
		if c.AssignedTo == nil {
			h.logger.Warn("due case has no assignee", "case_number", c.CaseNumber)
			continue
		}
		byAssignee[c.AssignedTo.Email] = append(byAssignee[c.AssignedTo.Email], c)
	}

	// Deterministic send order keeps logs and retries sane.
	emails := make([]string, 0, len(byAssignee))
	for email := range byAssignee {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	var failed int
	for _, email := range emails {
		group := byAssignee[email]
		if err := h.mailer.Send(ctx, h.digestMessage(email, group)); err != nil {
			h.logger.Error("reminder delivery failed", "to", email, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("due reminder: %d of %d digests failed", failed, len(byAssignee))
	}
	return nil
}

func (h *Handler) digestMessage(email string, group []models.Case) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d case(s) with upcoming due dates:\n\n", len(group))
	for _, c := range group {
		due := ""
		if c.DueDate != nil {
			due = c.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "  %s  %s  due %s  (%s)\n", c.CaseNumber, c.Title, due, c.Status)
	}

	return mailer.Message{
		To:      email,
		Subject: fmt.Sprintf("%d case(s) due soon", len(group)),
		Body:    b.String(),
	}
}
