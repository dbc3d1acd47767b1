package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeResetEmail  = "auth:reset_email"
	TypeDueReminder = "cases:due_reminder"
)

// ResetEmailPayload carries everything needed to deliver a password reset
// email. The token is the plaintext value; only its digest is stored.
type ResetEmailPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Token    string    `json:"token"`
	ResetURL string    `json:"reset_url"`
}

func NewResetEmailTask(payload ResetEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResetEmail, data), nil
}

// DueReminderPayload configures the periodic due-date sweep. Days is the
// look-ahead window; zero means the default window.
type DueReminderPayload struct {
	Days int `json:"days"`
}

func NewDueReminderTask(payload DueReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDueReminder, data), nil
}
