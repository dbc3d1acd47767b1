package cases

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound            = errors.New("no case found with that ID")
	ErrForbidden           = errors.New("not authorized for this case")
	ErrPageNotFound        = errors.New("this page does not exist")
	ErrKeywordRequired     = errors.New("search keyword is required")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidCaseNumber   = errors.New("case number must match YYMM-NNNN")
	ErrDuplicateCaseNumber = errors.New("case number already in use")
	ErrAssigneeNotStaff    = errors.New("cases can only be assigned to staff")
)

// Actor identifies the authenticated caller to every operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type CreateInput struct {
	CaseNumber      string
	CaseType        models.CaseType
	Title           string
	Description     string
	Priority        models.CasePriority
	Applicant       models.Applicant
	ApplicantUserID *uuid.UUID
	Beneficiaries   []models.Beneficiary
	Dates           models.CaseDates
	DueDate         *time.Time
	AssignedToID    *uuid.UUID
	Tags            []string
}

// Create opens a new case. Only attorneys and admins may create; the creator
// is recorded and becomes the default assignee; status always starts at
// draft. The case number is generated from the monthly counter unless the
// caller supplied a well-formed one.
func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Case, error) {
	if !CanCreate(actor.Role) {
		return nil, ErrForbidden
	}

	if input.CaseNumber != "" && !ValidCaseNumber(input.CaseNumber) {
		return nil, ErrInvalidCaseNumber
	}

	caseType := input.CaseType
	if caseType == "" {
		caseType = models.CaseTypeOther
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	assignedTo := input.AssignedToID
	if assignedTo == nil {
		id := actor.ID
		assignedTo = &id
	}

	newCase := models.Case{
		CaseNumber:      input.CaseNumber,
		CaseType:        caseType,
		Status:          models.StatusDraft,
		Priority:        priority,
		Title:           input.Title,
		Description:     input.Description,
		Applicant:       input.Applicant,
		ApplicantUserID: input.ApplicantUserID,
		Beneficiaries:   input.Beneficiaries,
		Dates:           input.Dates,
		DueDate:         input.DueDate,
		Tags:            input.Tags,
		AssignedToID:    assignedTo,
		CreatedByID:     actor.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newCase.CaseNumber == "" {
			number, err := nextCaseNumber(ctx, tx, time.Now())
			if err != nil {
				return err
			}
			newCase.CaseNumber = number
		} else {
			var count int64
			if err := tx.Model(&models.Case{}).Where("case_number = ?", newCase.CaseNumber).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateCaseNumber
			}
		}
		if err := tx.Create(&newCase).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateCaseNumber
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		"case_id", newCase.ID,
		"case_number", newCase.CaseNumber,
		"created_by", actor.ID,
	)

	return &newCase, nil
}

// Get fetches a single case. Existence is checked before ownership, so a
// caller probing a real case it cannot see gets 403, not 404.
func (s *Service) Get(ctx context.Context, actor Actor, caseID uuid.UUID) (*models.Case, error) {
	var c models.Case
	if err := s.db.WithContext(ctx).
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&c, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !canView(actor.ID, actor.Role, &c) {
		return nil, ErrForbidden
	}

	return &c, nil
}

// DateFilter is a relational constraint on a date column, translated from
// query-string operators (gte, gt, lte, lt).
type DateFilter struct {
	Field string
	Op    string
	Value time.Time
}

var dateFilterColumns = map[string]string{
	"due_date":     "due_date",
	"submitted_at": "submitted_at",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

var dateFilterOps = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
}

var sortColumns = map[string]string{
	"created_at":  "created_at",
	"updated_at":  "updated_at",
	"due_date":    "due_date",
	"case_number": "case_number",
	"case_type":   "case_type",
	"status":      "status",
	"priority":    "priority",
}

var selectableColumns = map[string]string{
	"id":          "id",
	"case_number": "case_number",
	"case_type":   "case_type",
	"status":      "status",
	"priority":    "priority",
	"title":       "title",
	"due_date":    "due_date",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

type ListParams struct {
	Status      models.CaseStatus
	CaseType    models.CaseType
	Priority    models.CasePriority
	AssignedTo  *uuid.UUID
	Archived    *bool
	DateFilters []DateFilter
	Sort        string   // comma-separated, "-" prefix for descending
	Fields      []string // optional column projection
	Page        int      // 0 means "not requested"
	Limit       int
}

// ListResult carries the page plus the total matching count.
type ListResult struct {
	Cases []models.Case
	Total int64
}

// List returns cases visible to the actor, newest-created first by default.
// The access scope is applied before any caller filter. A request for a page
// whose offset lies beyond the matching count fails with ErrPageNotFound.
func (s *Service) List(ctx context.Context, actor Actor, params ListParams) (*ListResult, error) {
	q := Scoped(s.db.WithContext(ctx).Model(&models.Case{}), actor.ID, actor.Role)

	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.CaseType != "" {
		q = q.Where("case_type = ?", params.CaseType)
	}
	if params.Priority != "" {
		q = q.Where("priority = ?", params.Priority)
	}
	if params.AssignedTo != nil {
		q = q.Where("assigned_to_id = ?", *params.AssignedTo)
	}
	if params.Archived != nil {
		q = q.Where("is_archived = ?", *params.Archived)
	}
	for _, f := range params.DateFilters {
		col, ok := dateFilterColumns[f.Field]
		if !ok {
			continue
		}
		op, ok := dateFilterOps[f.Op]
		if !ok {
			continue
		}
		q = q.Where(col+" "+op+" ?", f.Value)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	page := params.Page
	pageRequested := page > 0
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	if pageRequested && offset > 0 && int64(offset) >= total {
		return nil, ErrPageNotFound
	}

	q = q.Order(orderClause(params.Sort))
	if cols := projection(params.Fields); len(cols) > 0 {
		q = q.Select(cols)
	}

	var result []models.Case
	if err := q.Offset(offset).Limit(limit).Find(&result).Error; err != nil {
		return nil, err
	}

	return &ListResult{Cases: result, Total: total}, nil
}

func orderClause(sortParam string) string {
	if sortParam == "" {
		return "created_at DESC"
	}
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		col, ok := sortColumns[field]
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return "created_at DESC"
	}
	return strings.Join(parts, ", ")
}

func projection(fields []string) []string {
	var cols []string
	seenID := false
	for _, f := range fields {
		col, ok := selectableColumns[strings.TrimSpace(f)]
		if !ok {
			continue
		}
		if col == "id" {
			seenID = true
		}
		cols = append(cols, col)
	}
	if len(cols) > 0 && !seenID {
		cols = append(cols, "id")
	}
	return cols
}

type UpdateInput struct {
	Title           *string
	Description     *string
	Status          *models.CaseStatus
	Priority        *models.CasePriority
	CaseType        *models.CaseType
	Applicant       *models.Applicant
	ApplicantUserID *uuid.UUID
	Beneficiaries   []models.Beneficiary
	Dates           *models.CaseDates
	DueDate         *time.Time
	Forms           []models.CaseForm
	Agency          *models.AgencyInfo
	Payments        []models.CasePayment
	Tags            []string
	AssignedToID    *uuid.UUID
	IsArchived      *bool
}

// Update patches a case. Exactly one history entry recording the previous
// status is appended per call, in the same transaction as the field merge,
// and the updater and timestamp are stamped. Status changes must follow the
// transition table.
func (s *Service) Update(ctx context.Context, actor Actor, caseID uuid.UUID, patch UpdateInput) (*models.Case, error) {
	var updated *models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.loadForModify(tx, actor, caseID)
		if err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status != c.Status {
			if !patch.Status.Valid() {
				return ErrInvalidTransition
			}
			if !ValidTransition(c.Status, *patch.Status) {
				return ErrInvalidTransition
			}
		}

		now := time.Now()
		c.History = append(c.History, models.HistoryEntry{
			PreviousStatus: c.Status,
			UpdatedAt:      now,
			UpdatedBy:      actor.ID,
		})

		applyPatch(c, patch, now)
		actorID := actor.ID
		c.LastUpdatedByID = &actorID

		if err := tx.Save(c).Error; err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(c *models.Case, patch UpdateInput, now time.Time) {
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Status != nil && *patch.Status != c.Status {
		c.Status = *patch.Status
		if c.Status == models.StatusSubmitted && c.SubmittedAt == nil {
			c.SubmittedAt = &now
		}
	}
	if patch.Priority != nil {
		c.Priority = *patch.Priority
	}
	if patch.CaseType != nil {
		c.CaseType = *patch.CaseType
	}
	if patch.Applicant != nil {
		c.Applicant = *patch.Applicant
	}
	if patch.ApplicantUserID != nil {
		c.ApplicantUserID = patch.ApplicantUserID
	}
	if patch.Beneficiaries != nil {
		c.Beneficiaries = patch.Beneficiaries
	}
	if patch.Dates != nil {
		c.Dates = *patch.Dates
	}
	if patch.DueDate != nil {
		c.DueDate = patch.DueDate
	}
	if patch.Forms != nil {
		c.Forms = patch.Forms
	}
	if patch.Agency != nil {
		c.Agency = *patch.Agency
	}
	if patch.Payments != nil {
		c.Payments = patch.Payments
	}
	if patch.Tags != nil {
		c.Tags = patch.Tags
	}
	if patch.AssignedToID != nil {
		c.AssignedToID = patch.AssignedToID
	}
	if patch.IsArchived != nil {
		c.IsArchived = *patch.IsArchived
	}
}

// lockForUpdate adds a FOR UPDATE clause on dialects that have row locks.
// SQLite serializes writers on the database handle and rejects the syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// loadForModify reads the case with a row lock so concurrent writers
// serialize on the row instead of overwriting each other's history and
// note appends with stale copies.
func (s *Service) loadForModify(tx *gorm.DB, actor Actor, caseID uuid.UUID) (*models.Case, error) {
	var c models.Case
	if err := lockForUpdate(tx).First(&c, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !canModify(actor.ID, actor.Role, &c) {
		return nil, ErrForbidden
	}
	return &c, nil
}

// Delete removes a case permanently. Admin only.
func (s *Service) Delete(ctx context.Context, actor Actor, caseID uuid.UUID) error {
	if !CanDelete(actor.Role) {
		return ErrForbidden
	}

	res := s.db.WithContext(ctx).Delete(&models.Case{}, "id = ?", caseID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("case deleted", "case_id", caseID, "deleted_by", actor.ID)
	return nil
}

// Search performs a case-insensitive substring match over title,
// description, case number, applicant name, and notes, within the actor's
// scope.
func (s *Service) Search(ctx context.Context, actor Actor, keyword string) ([]models.Case, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrKeywordRequired
	}

	pattern := "%" + strings.ToLower(keyword) + "%"
	q := Scoped(s.db.WithContext(ctx).Model(&models.Case{}), actor.ID, actor.Role)
	q = q.Where(
		`LOWER(title) LIKE @kw
		OR LOWER(description) LIKE @kw
		OR LOWER(case_number) LIKE @kw
		OR LOWER(applicant_first_name) LIKE @kw
		OR LOWER(applicant_last_name) LIKE @kw
		OR LOWER(CAST(notes AS TEXT)) LIKE @kw`,
		sql.Named("kw", pattern),
	)

	var result []models.Case
	if err := q.Order("created_at DESC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultDueWindowDays is the due-soon horizon when the caller gives none.
const DefaultDueWindowDays = 30

// DueWithin returns non-terminal cases whose due date falls inside
// [now, now+days], ordered soonest first and scoped by role.
func (s *Service) DueWithin(ctx context.Context, actor Actor, days int) ([]models.Case, error) {
	if days <= 0 {
		days = DefaultDueWindowDays
	}

	now := time.Now()
	until := now.AddDate(0, 0, days)

	q := Scoped(s.db.WithContext(ctx).Model(&models.Case{}), actor.ID, actor.Role)
	q = q.Where("due_date >= ? AND due_date <= ?", now, until).
		Where("status NOT IN ?", []models.CaseStatus{
			models.StatusApproved, models.StatusDenied, models.StatusClosed,
		})

	var result []models.Case
	if err := q.Order("due_date ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// CaseSummary is a compact case reference used in statistics samples.
type CaseSummary struct {
	ID         uuid.UUID           `json:"id"`
	CaseNumber string              `json:"case_number"`
	Title      string              `json:"title"`
	Priority   models.CasePriority `json:"priority"`
}

// StatusStats aggregates one status group.
type StatusStats struct {
	Status models.CaseStatus `json:"status"`
	Count  int64             `json:"count"`
	// Mean days between submission and last update; nil when no case in the
	// group has both timestamps.
	AvgProcessingDays *float64      `json:"avg_processing_days,omitempty"`
	Cases             []CaseSummary `json:"cases"`
}

// statsSampleCap limits how many sample cases each status group carries.
const statsSampleCap = 5

// Stats groups the actor's visible cases by status. Admins see the whole
// store; attorneys only their own and assigned cases. Other roles are
// rejected.
func (s *Service) Stats(ctx context.Context, actor Actor) ([]StatusStats, error) {
	if !CanViewStats(actor.Role) {
		return nil, ErrForbidden
	}

	q := s.db.WithContext(ctx).Model(&models.Case{}).
		Select("id", "case_number", "title", "priority", "status", "submitted_at", "updated_at").
		Order("created_at DESC")
	if actor.Role == models.RoleAttorney {
		q = q.Where("assigned_to_id = ? OR created_by_id = ?", actor.ID, actor.ID)
	}

	var rows []models.Case
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	groups := make(map[models.CaseStatus]*StatusStats)
	sums := make(map[models.CaseStatus]float64)
	counts := make(map[models.CaseStatus]int)
	for i := range rows {
		c := &rows[i]
		g, ok := groups[c.Status]
		if !ok {
			g = &StatusStats{Status: c.Status}
			groups[c.Status] = g
		}
		g.Count++
		if len(g.Cases) < statsSampleCap {
			g.Cases = append(g.Cases, CaseSummary{
				ID:         c.ID,
				CaseNumber: c.CaseNumber,
				Title:      c.Title,
				Priority:   c.Priority,
			})
		}
		if c.SubmittedAt != nil {
			sums[c.Status] += c.UpdatedAt.Sub(*c.SubmittedAt).Hours() / 24
			counts[c.Status]++
		}
	}

	result := make([]StatusStats, 0, len(groups))
	for status, g := range groups {
		if n := counts[status]; n > 0 {
			avg := sums[status] / float64(n)
			g.AvgProcessingDays = &avg
		}
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Status < result[j].Status })

	return result, nil
}

// AddDocument attaches a document record to a case. Anyone who can view the
// case may upload; client applicants routinely file their own evidence.
func (s *Service) AddDocument(ctx context.Context, actor Actor, caseID uuid.UUID, doc models.CaseDocument) (*models.Case, error) {
	var updated *models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Case
		if err := lockForUpdate(tx).First(&c, "id = ?", caseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !canView(actor.ID, actor.Role, &c) {
			return ErrForbidden
		}

		doc.ID = uuid.New()
		doc.UploadedAt = time.Now()
		doc.UploadedBy = actor.ID
		if doc.Status == "" {
			doc.Status = models.DocumentPending
		}
		c.Documents = append(c.Documents, doc)

		if err := tx.Model(&c).Update("documents", c.Documents).Error; err != nil {
			return err
		}
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddNote appends a note. Staff only; private notes stay hidden from the
// applicant when the case is rendered for a client.
func (s *Service) AddNote(ctx context.Context, actor Actor, caseID uuid.UUID, content string, isPrivate bool) (*models.Case, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}

	var updated *models.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.loadForModify(tx, actor, caseID)
		if err != nil {
			return err
		}

		c.Notes = append(c.Notes, models.CaseNote{
			ID:        uuid.New(),
			Content:   content,
			CreatedBy: actor.ID,
			CreatedAt: time.Now(),
			IsPrivate: isPrivate,
		})

		if err := tx.Model(c).Update("notes", c.Notes).Error; err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Assign hands a case to a staff member. Admin only; the reassignment runs
// through Update so it lands in the history log like any other change.
func (s *Service) Assign(ctx context.Context, actor Actor, caseID, assigneeID uuid.UUID) (*models.Case, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	var assignee models.User
	if err := s.db.WithContext(ctx).First(&assignee, "id = ?", assigneeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssigneeNotStaff
		}
		return nil, err
	}
	if !assignee.Role.IsStaff() {
		return nil, ErrAssigneeNotStaff
	}

	return s.Update(ctx, actor, caseID, UpdateInput{AssignedToID: &assigneeID})
}

// Timeline returns the append-only history log for audit display.
func (s *Service) Timeline(ctx context.Context, actor Actor, caseID uuid.UUID) ([]models.HistoryEntry, error) {
	c, err := s.Get(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	return c.History, nil
}
