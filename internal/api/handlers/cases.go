package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meridianlaw/caseflow/internal/api/dto"
	"github.com/meridianlaw/caseflow/internal/api/middleware"
	"github.com/meridianlaw/caseflow/internal/cases"
	"github.com/meridianlaw/caseflow/internal/database/models"
)

type CaseHandler struct {
	service *cases.Service
	logger  *slog.Logger
}

func NewCaseHandler(service *cases.Service, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{service: service, logger: logger}
}

func actorFrom(r *http.Request) cases.Actor {
	return cases.Actor{
		ID:   middleware.GetUserID(r.Context()),
		Role: middleware.GetUserRole(r.Context()),
	}
}

// Create handles POST /cases.
func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	input := cases.CreateInput{
		CaseNumber:    req.CaseNumber,
		CaseType:      models.CaseType(req.CaseType),
		Title:         req.Title,
		Description:   req.Description,
		Priority:      models.CasePriority(req.Priority),
		Applicant:     req.Applicant,
		Beneficiaries: req.Beneficiaries,
		Dates:         req.Dates,
		DueDate:       req.DueDate,
		Tags:          req.Tags,
	}
	if req.ApplicantUserID != "" {
		id, _ := uuid.Parse(req.ApplicantUserID)
		input.ApplicantUserID = &id
	}
	if req.AssignedTo != "" {
		id, _ := uuid.Parse(req.AssignedTo)
		input.AssignedToID = &id
	}

	created, err := h.service.Create(r.Context(), actorFrom(r), input)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.Success(created))
}

// List handles GET /cases with filtering, sorting, field selection and
// pagination.
func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := cases.ListParams{
		Status:   models.CaseStatus(q.Get("status")),
		CaseType: models.CaseType(q.Get("case_type")),
		Priority: models.CasePriority(q.Get("priority")),
		Sort:     q.Get("sort"),
	}
	if fields := q.Get("fields"); fields != "" {
		params.Fields = strings.Split(fields, ",")
	}
	if assigned := q.Get("assigned_to"); assigned != "" {
		if id, err := uuid.Parse(assigned); err == nil {
			params.AssignedTo = &id
		}
	}
	if archived := q.Get("archived"); archived != "" {
		v := archived == "true"
		params.Archived = &v
	}
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.Limit, _ = strconv.Atoi(q.Get("limit"))
	params.DateFilters = parseDateFilters(q)

	result, err := h.service.List(r.Context(), actorFrom(r), params)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	// Mirror the service's limit bounds so the reported limit and page
	// count match the rows actually returned.
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	totalPages := int(result.Total) / limit
	if int(result.Total)%limit > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.SuccessList(dto.PaginatedData{
		Items:      result.Cases,
		Total:      result.Total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, len(result.Cases)))
}

// parseDateFilters extracts relational date constraints from query keys of
// the form field_op, e.g. due_date_gte=2026-01-01.
func parseDateFilters(q map[string][]string) []cases.DateFilter {
	fields := []string{"due_date", "submitted_at", "created_at", "updated_at"}
	ops := []string{"gte", "gt", "lte", "lt"}

	var filters []cases.DateFilter
	for _, field := range fields {
		for _, op := range ops {
			values, ok := q[field+"_"+op]
			if !ok || len(values) == 0 {
				continue
			}
			t, err := parseDate(values[0])
			if err != nil {
				continue
			}
			filters = append(filters, cases.DateFilter{Field: field, Op: op, Value: t})
		}
	}
	return filters
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// Get handles GET /cases/{id}.
func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	c, err := h.service.Get(r.Context(), actorFrom(r), caseID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success(c))
}

// Update handles PATCH /cases/{id}.
func (h *CaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	var req dto.UpdateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	patch := cases.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		Applicant:     req.Applicant,
		Beneficiaries: req.Beneficiaries,
		Dates:         req.Dates,
		DueDate:       req.DueDate,
		Forms:         req.Forms,
		Agency:        req.Agency,
		Payments:      req.Payments,
		Tags:          req.Tags,
		IsArchived:    req.IsArchived,
	}
	if req.Status != nil {
		s := models.CaseStatus(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := models.CasePriority(*req.Priority)
		patch.Priority = &p
	}
	if req.CaseType != nil {
		t := models.CaseType(*req.CaseType)
		patch.CaseType = &t
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		id, _ := uuid.Parse(*req.AssignedTo)
		patch.AssignedToID = &id
	}
	if req.ApplicantUserID != nil && *req.ApplicantUserID != "" {
		id, _ := uuid.Parse(*req.ApplicantUserID)
		patch.ApplicantUserID = &id
	}

	updated, err := h.service.Update(r.Context(), actorFrom(r), caseID, patch)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success(updated))
}

// Delete handles DELETE /cases/{id}. Admin only; hard delete.
func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	if err := h.service.Delete(r.Context(), actorFrom(r), caseID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /cases/search?keyword=.
func (h *CaseHandler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Search(r.Context(), actorFrom(r), r.URL.Query().Get("keyword"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessList(map[string]interface{}{"cases": result}, len(result)))
}

// Due handles GET /cases/due?days=.
func (h *CaseHandler) Due(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	result, err := h.service.DueWithin(r.Context(), actorFrom(r), days)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessList(map[string]interface{}{"cases": result}, len(result)))
}

// Stats handles GET /cases/stats.
func (h *CaseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success(map[string]interface{}{"stats": stats}))
}

// AddDocument handles POST /cases/{id}/documents.
func (h *CaseHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	var req dto.AddDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	updated, err := h.service.AddDocument(r.Context(), actorFrom(r), caseID, models.CaseDocument{
		Name:        req.Name,
		Description: req.Description,
		FileURL:     req.FileURL,
		FileType:    req.FileType,
		IsRequired:  req.IsRequired,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.Success(updated))
}

// AddNote handles POST /cases/{id}/notes. Staff only.
func (h *CaseHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	var req dto.AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	updated, err := h.service.AddNote(r.Context(), actorFrom(r), caseID, req.Content, req.IsPrivate)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.Success(updated))
}

// Assign handles PATCH /cases/{id}/assign. Admin only.
func (h *CaseHandler) Assign(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	var req dto.AssignCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.FailWithDetails("Validation failed", errs))
		return
	}

	assigneeID, _ := uuid.Parse(req.AssignedTo)
	updated, err := h.service.Assign(r.Context(), actorFrom(r), caseID, assigneeID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success(updated))
}

// Timeline handles GET /cases/{id}/timeline.
func (h *CaseHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail("Invalid case ID"))
		return
	}

	history, err := h.service.Timeline(r.Context(), actorFrom(r), caseID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessList(map[string]interface{}{"timeline": history}, len(history)))
}
