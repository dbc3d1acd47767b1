package cases_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meridianlaw/caseflow/internal/cases"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/meridianlaw/caseflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCaseService(t *testing.T) (*cases.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cases.NewService(db, logger), db
}

func asActor(u *models.User) cases.Actor {
	return cases.Actor{ID: u.ID, Role: u.Role}
}

func TestService_Create(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	client := testutil.CreateTestUser(t, db, models.RoleClient)
	paralegal := testutil.CreateTestUser(t, db, models.RoleParalegal)

	t.Run("generates case number and defaults", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Khan work permit",
			CaseType:  models.CaseTypeWorkPermit,
			Applicant: models.Applicant{FirstName: "Imran", LastName: "Khan"},
		})
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{4}$`), c.CaseNumber)
		assert.Equal(t, time.Now().Format("0601"), c.CaseNumber[:4])
		assert.Equal(t, models.StatusDraft, c.Status)
		assert.Equal(t, models.PriorityMedium, c.Priority)
		assert.Equal(t, attorney.ID, c.CreatedByID)
		require.NotNil(t, c.AssignedToID)
		assert.Equal(t, attorney.ID, *c.AssignedToID)
	})

	t.Run("numbers increase within the month", func(t *testing.T) {
		first, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "First",
			Applicant: models.Applicant{FirstName: "A", LastName: "B"},
		})
		require.NoError(t, err)
		second, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Second",
			Applicant: models.Applicant{FirstName: "C", LastName: "D"},
		})
		require.NoError(t, err)

		assert.Greater(t, second.CaseNumber, first.CaseNumber)
	})

	t.Run("accepts well-formed supplied number once", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			CaseNumber: "2501-0042",
			Title:      "Imported from the old tracker",
			Applicant:  models.Applicant{FirstName: "Lena", LastName: "Park"},
		})
		require.NoError(t, err)
		assert.Equal(t, "2501-0042", c.CaseNumber)

		_, err = svc.Create(ctx, asActor(attorney), cases.CreateInput{
			CaseNumber: "2501-0042",
			Title:      "Duplicate",
			Applicant:  models.Applicant{FirstName: "Lena", LastName: "Park"},
		})
		assert.Equal(t, cases.ErrDuplicateCaseNumber, err)
	})

	t.Run("rejects malformed supplied number", func(t *testing.T) {
		_, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			CaseNumber: "CASE-12345",
			Title:      "Bad number",
			Applicant:  models.Applicant{FirstName: "X", LastName: "Y"},
		})
		assert.Equal(t, cases.ErrInvalidCaseNumber, err)
	})

	t.Run("clients and paralegals may not create", func(t *testing.T) {
		_, err := svc.Create(ctx, asActor(client), cases.CreateInput{Title: "Nope"})
		assert.Equal(t, cases.ErrForbidden, err)

		_, err = svc.Create(ctx, asActor(paralegal), cases.CreateInput{Title: "Nope"})
		assert.Equal(t, cases.ErrForbidden, err)
	})
}

func TestService_Get(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	applicant := testutil.CreateTestUser(t, db, models.RoleClient)
	stranger := testutil.CreateTestUser(t, db, models.RoleClient)

	c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
		Title:           "Asylum filing",
		CaseType:        models.CaseTypeAsylum,
		Applicant:       models.Applicant{FirstName: "Nadia", LastName: "Haddad"},
		ApplicantUserID: &applicant.ID,
	})
	require.NoError(t, err)

	t.Run("missing case reports not found", func(t *testing.T) {
		_, err := svc.Get(ctx, asActor(attorney), uuid.New())
		assert.Equal(t, cases.ErrNotFound, err)
	})

	t.Run("applicant may view their own case", func(t *testing.T) {
		got, err := svc.Get(ctx, asActor(applicant), c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
	})

	t.Run("unrelated client is refused, not hidden", func(t *testing.T) {
		_, err := svc.Get(ctx, asActor(stranger), c.ID)
		assert.Equal(t, cases.ErrForbidden, err)
	})
}

func TestService_List_Scoping(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	attorney1 := testutil.CreateTestUser(t, db, models.RoleAttorney)
	attorney2 := testutil.CreateTestUser(t, db, models.RoleAttorney)
	client := testutil.CreateTestUser(t, db, models.RoleClient)

	mine, err := svc.Create(ctx, asActor(attorney1), cases.CreateInput{
		Title:           "Visa renewal",
		Applicant:       models.Applicant{FirstName: "Omar", LastName: "Diallo"},
		ApplicantUserID: &client.ID,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, asActor(attorney2), cases.CreateInput{
		Title:     "Green card petition",
		Applicant: models.Applicant{FirstName: "Rosa", LastName: "Marin"},
	})
	require.NoError(t, err)

	t.Run("admin sees everything", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
	})

	t.Run("attorney sees only own and assigned", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(attorney1), cases.ListParams{})
		require.NoError(t, err)
		require.Equal(t, int64(1), result.Total)
		assert.Equal(t, mine.ID, result.Cases[0].ID)
	})

	t.Run("client sees only cases where they are the applicant", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(client), cases.ListParams{})
		require.NoError(t, err)
		require.Equal(t, int64(1), result.Total)
		assert.Equal(t, mine.ID, result.Cases[0].ID)
	})

	t.Run("status filter applies inside the scope", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{Status: models.StatusSubmitted})
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Total)
	})
}

func TestService_List_Pagination(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	staff := testutil.CreateTestUser(t, db, models.RoleAttorney)
	for i := 0; i < 25; i++ {
		testutil.CreateTestCase(t, db, staff)
	}

	t.Run("first page fills to the limit", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, result.Cases, 10)
		assert.Equal(t, int64(25), result.Total)
	})

	t.Run("last page carries the remainder", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{Page: 3, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, result.Cases, 5)
	})

	t.Run("page past the end fails", func(t *testing.T) {
		_, err := svc.List(ctx, asActor(admin), cases.ListParams{Page: 4, Limit: 10})
		assert.Equal(t, cases.ErrPageNotFound, err)
	})

	t.Run("unrequested page defaults without failing", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{})
		require.NoError(t, err)
		assert.Len(t, result.Cases, 10)
	})

	t.Run("sort and projection", func(t *testing.T) {
		result, err := svc.List(ctx, asActor(admin), cases.ListParams{
			Sort:   "-case_number",
			Fields: []string{"case_number", "title"},
			Page:   1,
			Limit:  5,
		})
		require.NoError(t, err)
		require.Len(t, result.Cases, 5)
		assert.GreaterOrEqual(t, result.Cases[0].CaseNumber, result.Cases[4].CaseNumber)
		assert.NotEqual(t, uuid.Nil, result.Cases[0].ID)
	})
}

func TestService_Update(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	outsider := testutil.CreateTestUser(t, db, models.RoleAttorney)

	t.Run("appends exactly one history entry per update", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "History test",
			Applicant: models.Applicant{FirstName: "Ana", LastName: "Silva"},
		})
		require.NoError(t, err)
		require.Empty(t, c.History)

		title := "Renamed"
		updated, err := svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Title: &title})
		require.NoError(t, err)
		require.Len(t, updated.History, 1)
		assert.Equal(t, models.StatusDraft, updated.History[0].PreviousStatus)
		assert.Equal(t, attorney.ID, updated.History[0].UpdatedBy)

		status := models.StatusSubmitted
		updated, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
		require.NoError(t, err)
		require.Len(t, updated.History, 2)
		assert.Equal(t, models.StatusDraft, updated.History[1].PreviousStatus)
	})

	t.Run("concurrent updates never drop a history entry", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Contended case",
			Applicant: models.Applicant{FirstName: "Mira", LastName: "Osei"},
		})
		require.NoError(t, err)

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				title := fmt.Sprintf("Revision %d", i)
				_, errs[i] = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Title: &title})
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		got, err := svc.Get(ctx, asActor(attorney), c.ID)
		require.NoError(t, err)
		assert.Len(t, got.History, writers)
	})

	t.Run("first transition to submitted stamps SubmittedAt", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Submission stamp",
			Applicant: models.Applicant{FirstName: "Bo", LastName: "Lund"},
		})
		require.NoError(t, err)
		require.Nil(t, c.SubmittedAt)

		status := models.StatusSubmitted
		updated, err := svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
		require.NoError(t, err)
		require.NotNil(t, updated.SubmittedAt)
		firstStamp := *updated.SubmittedAt

		// Back to hold and resubmit; the original stamp survives
		hold := models.StatusOnHold
		_, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &hold})
		require.NoError(t, err)
		updated, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, firstStamp.Unix(), updated.SubmittedAt.Unix())
	})

	t.Run("illegal transition is rejected", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Transition guard",
			Applicant: models.Applicant{FirstName: "Ty", LastName: "Nkemdirim"},
		})
		require.NoError(t, err)

		status := models.StatusApproved
		_, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
		assert.Equal(t, cases.ErrInvalidTransition, err)

		// And nothing was recorded
		got, err := svc.Get(ctx, asActor(attorney), c.ID)
		require.NoError(t, err)
		assert.Empty(t, got.History)
		assert.Equal(t, models.StatusDraft, got.Status)
	})

	t.Run("same-status write is a no-op transition", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Same status",
			Applicant: models.Applicant{FirstName: "Jo", LastName: "Woods"},
		})
		require.NoError(t, err)

		status := models.StatusDraft
		_, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
		assert.NoError(t, err)
	})

	t.Run("non-participant staff cannot update", func(t *testing.T) {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     "Ownership",
			Applicant: models.Applicant{FirstName: "Kim", LastName: "Doe"},
		})
		require.NoError(t, err)

		title := "Hijacked"
		_, err = svc.Update(ctx, asActor(outsider), c.ID, cases.UpdateInput{Title: &title})
		assert.Equal(t, cases.ErrForbidden, err)
	})
}

func TestService_Delete(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	c := testutil.CreateTestCase(t, db, attorney)

	t.Run("only admins may delete", func(t *testing.T) {
		err := svc.Delete(ctx, asActor(attorney), c.ID)
		assert.Equal(t, cases.ErrForbidden, err)
	})

	t.Run("admin delete is permanent", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, asActor(admin), c.ID))

		var count int64
		require.NoError(t, db.Model(&models.Case{}).Where("id = ?", c.ID).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("deleting twice reports not found", func(t *testing.T) {
		err := svc.Delete(ctx, asActor(admin), c.ID)
		assert.Equal(t, cases.ErrNotFound, err)
	})
}

func TestService_Search(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	stranger := testutil.CreateTestUser(t, db, models.RoleClient)

	_, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
		Title:       "Naturalization interview prep",
		Description: "Client needs N-400 review before the USCIS interview",
		Applicant:   models.Applicant{FirstName: "Yusuf", LastName: "Demir"},
	})
	require.NoError(t, err)

	t.Run("requires a keyword", func(t *testing.T) {
		_, err := svc.Search(ctx, asActor(attorney), "   ")
		assert.Equal(t, cases.ErrKeywordRequired, err)
	})

	t.Run("matches case-insensitively across fields", func(t *testing.T) {
		byTitle, err := svc.Search(ctx, asActor(attorney), "NATURALIZATION")
		require.NoError(t, err)
		assert.Len(t, byTitle, 1)

		byApplicant, err := svc.Search(ctx, asActor(attorney), "demir")
		require.NoError(t, err)
		assert.Len(t, byApplicant, 1)

		byDescription, err := svc.Search(ctx, asActor(attorney), "n-400")
		require.NoError(t, err)
		assert.Len(t, byDescription, 1)
	})

	t.Run("scope hides other people's cases", func(t *testing.T) {
		result, err := svc.Search(ctx, asActor(stranger), "naturalization")
		require.NoError(t, err)
		assert.Empty(t, result)
	})
}

func TestService_DueWithin(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)

	mkCase := func(title string, due time.Time) *models.Case {
		soon := due
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     title,
			Applicant: models.Applicant{FirstName: "D", LastName: "Ue"},
			DueDate:   &soon,
		})
		require.NoError(t, err)
		return c
	}

	inWindow := mkCase("due soon", time.Now().AddDate(0, 0, 5))
	mkCase("far future", time.Now().AddDate(0, 0, 90))
	closed := mkCase("closed already", time.Now().AddDate(0, 0, 3))
	require.NoError(t, db.Model(&models.Case{}).
		Where("id = ?", closed.ID).
		Update("status", models.StatusClosed).Error)

	t.Run("window includes only open cases due inside it", func(t *testing.T) {
		result, err := svc.DueWithin(ctx, asActor(admin), 7)
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, inWindow.ID, result[0].ID)
	})

	t.Run("default window is 30 days", func(t *testing.T) {
		result, err := svc.DueWithin(ctx, asActor(admin), 0)
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})
}

func TestService_Stats(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	paralegal := testutil.CreateTestUser(t, db, models.RoleParalegal)

	for i := 0; i < 3; i++ {
		c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
			Title:     fmt.Sprintf("Stats case %d", i),
			Applicant: models.Applicant{FirstName: "S", LastName: "Tats"},
		})
		require.NoError(t, err)
		if i == 0 {
			status := models.StatusSubmitted
			_, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
			require.NoError(t, err)
		}
	}

	t.Run("paralegals may not view stats", func(t *testing.T) {
		_, err := svc.Stats(ctx, asActor(paralegal))
		assert.Equal(t, cases.ErrForbidden, err)
	})

	t.Run("groups by status with counts and samples", func(t *testing.T) {
		stats, err := svc.Stats(ctx, asActor(admin))
		require.NoError(t, err)
		require.Len(t, stats, 2)

		byStatus := map[models.CaseStatus]cases.StatusStats{}
		for _, g := range stats {
			byStatus[g.Status] = g
		}
		assert.Equal(t, int64(2), byStatus[models.StatusDraft].Count)
		assert.Equal(t, int64(1), byStatus[models.StatusSubmitted].Count)
		assert.Len(t, byStatus[models.StatusDraft].Cases, 2)

		// Only the submitted group has processing data
		assert.Nil(t, byStatus[models.StatusDraft].AvgProcessingDays)
		require.NotNil(t, byStatus[models.StatusSubmitted].AvgProcessingDays)
		assert.GreaterOrEqual(t, *byStatus[models.StatusSubmitted].AvgProcessingDays, 0.0)
	})
}

func TestService_Documents_Notes(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	applicant := testutil.CreateTestUser(t, db, models.RoleClient)

	c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
		Title:           "Evidence gathering",
		Applicant:       models.Applicant{FirstName: "Petra", LastName: "Novak"},
		ApplicantUserID: &applicant.ID,
	})
	require.NoError(t, err)

	t.Run("applicant uploads a document", func(t *testing.T) {
		updated, err := svc.AddDocument(ctx, asActor(applicant), c.ID, models.CaseDocument{
			Name:    "Passport scan",
			FileURL: "https://files.example/passport.pdf",
		})
		require.NoError(t, err)
		require.Len(t, updated.Documents, 1)
		assert.Equal(t, models.DocumentPending, updated.Documents[0].Status)
		assert.Equal(t, applicant.ID, updated.Documents[0].UploadedBy)
		assert.NotEqual(t, uuid.Nil, updated.Documents[0].ID)
	})

	t.Run("clients cannot add notes", func(t *testing.T) {
		_, err := svc.AddNote(ctx, asActor(applicant), c.ID, "sneaky", false)
		assert.Equal(t, cases.ErrForbidden, err)
	})

	t.Run("staff note is persisted", func(t *testing.T) {
		updated, err := svc.AddNote(ctx, asActor(attorney), c.ID, "Waiting on translated birth certificate", true)
		require.NoError(t, err)
		require.Len(t, updated.Notes, 1)
		assert.True(t, updated.Notes[0].IsPrivate)
		assert.Equal(t, attorney.ID, updated.Notes[0].CreatedBy)
	})
}

func TestService_Assign(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	admin := testutil.CreateTestUser(t, db, models.RoleAdmin)
	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	paralegal := testutil.CreateTestUser(t, db, models.RoleParalegal)
	client := testutil.CreateTestUser(t, db, models.RoleClient)

	c := testutil.CreateTestCase(t, db, attorney)

	t.Run("only admins may assign", func(t *testing.T) {
		_, err := svc.Assign(ctx, asActor(attorney), c.ID, paralegal.ID)
		assert.Equal(t, cases.ErrForbidden, err)
	})

	t.Run("assignee must be staff", func(t *testing.T) {
		_, err := svc.Assign(ctx, asActor(admin), c.ID, client.ID)
		assert.Equal(t, cases.ErrAssigneeNotStaff, err)

		_, err = svc.Assign(ctx, asActor(admin), c.ID, uuid.New())
		assert.Equal(t, cases.ErrAssigneeNotStaff, err)
	})

	t.Run("assignment lands in the history log", func(t *testing.T) {
		updated, err := svc.Assign(ctx, asActor(admin), c.ID, paralegal.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.AssignedToID)
		assert.Equal(t, paralegal.ID, *updated.AssignedToID)
		require.Len(t, updated.History, 1)
		assert.Equal(t, admin.ID, updated.History[0].UpdatedBy)
	})
}

func TestService_Timeline(t *testing.T) {
	svc, db := newCaseService(t)
	ctx := context.Background()

	attorney := testutil.CreateTestUser(t, db, models.RoleAttorney)
	stranger := testutil.CreateTestUser(t, db, models.RoleClient)

	c, err := svc.Create(ctx, asActor(attorney), cases.CreateInput{
		Title:     "Timeline",
		Applicant: models.Applicant{FirstName: "T", LastName: "Line"},
	})
	require.NoError(t, err)

	status := models.StatusSubmitted
	_, err = svc.Update(ctx, asActor(attorney), c.ID, cases.UpdateInput{Status: &status})
	require.NoError(t, err)

	t.Run("returns the append-only log", func(t *testing.T) {
		history, err := svc.Timeline(ctx, asActor(attorney), c.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.StatusDraft, history[0].PreviousStatus)
	})

	t.Run("visibility follows the case", func(t *testing.T) {
		_, err := svc.Timeline(ctx, asActor(stranger), c.ID)
		assert.Equal(t, cases.ErrForbidden, err)
	})
}
