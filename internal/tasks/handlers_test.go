package tasks

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/meridianlaw/caseflow/internal/mailer"
	"github.com/meridianlaw/caseflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMailer captures sent messages; failTo makes delivery to one
// address fail so partial-failure handling can be exercised.
type recordingMailer struct {
	sent   []mailer.Message
	failTo string
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.failTo != "" && msg.To == m.failTo {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger(), &recordingMailer{})

	assert.NotNil(t, handler)
	assert.NotNil(t, handler.db)
	assert.NotNil(t, handler.logger)
	assert.NotNil(t, handler.mailer)
}

func TestHandleResetEmail_InvalidPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger(), &recordingMailer{})

	task := asynq.NewTask(TypeResetEmail, []byte("invalid json"))

	err := handler.HandleResetEmail(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}

func TestHandleResetEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	m := &recordingMailer{}
	handler := NewHandler(db, testLogger(), m)

	task, err := NewResetEmailTask(ResetEmailPayload{
		UserID:   uuid.New(),
		Email:    "maria@example.com",
		Name:     "Maria",
		Token:    "plaintext-token",
		ResetURL: "http://localhost:8080/api/v1/auth/resetpassword/plaintext-token",
	})
	require.NoError(t, err)

	err = handler.HandleResetEmail(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "maria@example.com", msg.To)
	assert.Contains(t, msg.Subject, "10 minutes")
	assert.Contains(t, msg.Body, "Maria")
	assert.Contains(t, msg.Body, "resetpassword/plaintext-token")
}

func TestHandleResetEmail_DeliveryFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	m := &recordingMailer{failTo: "maria@example.com"}
	handler := NewHandler(db, testLogger(), m)

	task, err := NewResetEmailTask(ResetEmailPayload{
		UserID: uuid.New(),
		Email:  "maria@example.com",
		Name:   "Maria",
	})
	require.NoError(t, err)

	// The error must surface so asynq retries the delivery
	err = handler.HandleResetEmail(context.Background(), task)
	assert.Error(t, err)
}

func TestHandleDueReminder_InvalidPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger(), &recordingMailer{})

	task := asynq.NewTask(TypeDueReminder, []byte("invalid json"))

	err := handler.HandleDueReminder(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}

func TestHandleDueReminder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	paralegal := testutil.CreateTestUser(t, db, models.RoleParalegal)

	soon := time.Now().AddDate(0, 0, 3)

	// Two due cases for the attorney, one for the paralegal
	for i := 0; i < 2; i++ {
		c := testutil.CreateTestCase(t, db, attorney)
		require.NoError(t, db.Model(c).Update("due_date", soon).Error)
	}
	c := testutil.CreateTestCase(t, db, paralegal)
	require.NoError(t, db.Model(c).Update("due_date", soon).Error)

	// Terminal and archived cases never make the digest
	closed := testutil.CreateTestCase(t, db, attorney)
	require.NoError(t, db.Model(closed).Updates(map[string]interface{}{
		"due_date": soon,
		"status":   models.StatusClosed,
	}).Error)
	archived := testutil.CreateTestCase(t, db, attorney)
	require.NoError(t, db.Model(archived).Updates(map[string]interface{}{
		"due_date":    soon,
		"is_archived": true,
	}).Error)

	// A case due beyond the window is out of scope
	farOut := testutil.CreateTestCase(t, db, attorney)
	require.NoError(t, db.Model(farOut).Update("due_date", time.Now().AddDate(0, 0, 60)).Error)

	m := &recordingMailer{}
	handler := NewHandler(db, testLogger(), m)

	task, err := NewDueReminderTask(DueReminderPayload{Days: 7})
	require.NoError(t, err)

	err = handler.HandleDueReminder(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, m.sent, 2)

	byTo := make(map[string]mailer.Message)
	for _, msg := range m.sent {
		byTo[msg.To] = msg
	}

	attorneyDigest, ok := byTo[attorney.Email]
	require.True(t, ok, "attorney should receive a digest")
	assert.Contains(t, attorneyDigest.Subject, "2 case(s)")
	assert.NotContains(t, attorneyDigest.Body, closed.CaseNumber)
	assert.NotContains(t, attorneyDigest.Body, archived.CaseNumber)
	assert.NotContains(t, attorneyDigest.Body, farOut.CaseNumber)

	paralegalDigest, ok := byTo[paralegal.Email]
	require.True(t, ok, "paralegal should receive a digest")
	assert.Contains(t, paralegalDigest.Body, c.CaseNumber)
}

func TestHandleDueReminder_NoDueCases(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	m := &recordingMailer{}
	handler := NewHandler(db, testLogger(), m)

	task, err := NewDueReminderTask(DueReminderPayload{})
	require.NoError(t, err)

	err = handler.HandleDueReminder(context.Background(), task)
	require.NoError(t, err)
	assert.Empty(t, m.sent)
}

func TestHandleDueReminder_PartialFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	paralegal := testutil.CreateTestUser(t, db, models.RoleParalegal)

	soon := time.Now().AddDate(0, 0, 3)
	for _, u := range []*models.User{attorney, paralegal} {
		c := testutil.CreateTestCase(t, db, u)
		require.NoError(t, db.Model(c).Update("due_date", soon).Error)
	}

	m := &recordingMailer{failTo: attorney.Email}
	handler := NewHandler(db, testLogger(), m)

	task, err := NewDueReminderTask(DueReminderPayload{Days: 7})
	require.NoError(t, err)

	err = handler.HandleDueReminder(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "digests failed")

	// The healthy recipient still got theirs
	require.Len(t, m.sent, 1)
	assert.Equal(t, paralegal.Email, m.sent[0].To)
}

func TestRegisterHandlers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger(), &recordingMailer{})

	mux := asynq.NewServeMux()
	assert.NotPanics(t, func() {
		handler.RegisterHandlers(mux)
	})
}
