package dto

import (
	"time"

	"github.com/meridianlaw/caseflow/internal/api/validation"
	"github.com/meridianlaw/caseflow/internal/database/models"
)

type CreateCaseRequest struct {
	CaseNumber      string               `json:"case_number,omitempty"`
	CaseType        string               `json:"case_type"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	Priority        string               `json:"priority,omitempty"`
	Applicant       models.Applicant     `json:"applicant"`
	ApplicantUserID string               `json:"applicant_user_id,omitempty"`
	Beneficiaries   []models.Beneficiary `json:"beneficiaries,omitempty"`
	Dates           models.CaseDates     `json:"dates"`
	DueDate         *time.Time           `json:"due_date,omitempty"`
	AssignedTo      string               `json:"assigned_to,omitempty"`
	Tags            []string             `json:"tags,omitempty"`
}

func (r CreateCaseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CaseType != "" && !models.CaseType(r.CaseType).Valid() {
		errors["case_type"] = "Invalid case type"
	}
	if r.Priority != "" && !models.CasePriority(r.Priority).Valid() {
		errors["priority"] = "Invalid priority"
	}
	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	if r.Applicant.FirstName == "" {
		errors["applicant.first_name"] = "Applicant first name is required"
	}
	if r.Applicant.LastName == "" {
		errors["applicant.last_name"] = "Applicant last name is required"
	}
	if r.Applicant.Email != "" && !validation.IsValidEmail(r.Applicant.Email) {
		errors["applicant.email"] = "Please provide a valid email"
	}
	if r.ApplicantUserID != "" && !validation.IsValidUUID(r.ApplicantUserID) {
		errors["applicant_user_id"] = "Invalid applicant user ID"
	}
	if r.AssignedTo != "" && !validation.IsValidUUID(r.AssignedTo) {
		errors["assigned_to"] = "Invalid assignee ID"
	}

	return errors
}

type UpdateCaseRequest struct {
	Title           *string              `json:"title,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Status          *string              `json:"status,omitempty"`
	Priority        *string              `json:"priority,omitempty"`
	CaseType        *string              `json:"case_type,omitempty"`
	Applicant       *models.Applicant    `json:"applicant,omitempty"`
	ApplicantUserID *string              `json:"applicant_user_id,omitempty"`
	Beneficiaries   []models.Beneficiary `json:"beneficiaries,omitempty"`
	Dates           *models.CaseDates    `json:"dates,omitempty"`
	DueDate         *time.Time           `json:"due_date,omitempty"`
	Forms           []models.CaseForm    `json:"forms,omitempty"`
	Agency          *models.AgencyInfo   `json:"agency,omitempty"`
	Payments        []models.CasePayment `json:"payments,omitempty"`
	Tags            []string             `json:"tags,omitempty"`
	AssignedTo      *string              `json:"assigned_to,omitempty"`
	IsArchived      *bool                `json:"is_archived,omitempty"`
}

func (r UpdateCaseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Status != nil && !models.CaseStatus(*r.Status).Valid() {
		errors["status"] = "Invalid status"
	}
	if r.Priority != nil && !models.CasePriority(*r.Priority).Valid() {
		errors["priority"] = "Invalid priority"
	}
	if r.CaseType != nil && !models.CaseType(*r.CaseType).Valid() {
		errors["case_type"] = "Invalid case type"
	}
	if r.AssignedTo != nil && *r.AssignedTo != "" && !validation.IsValidUUID(*r.AssignedTo) {
		errors["assigned_to"] = "Invalid assignee ID"
	}
	if r.ApplicantUserID != nil && *r.ApplicantUserID != "" && !validation.IsValidUUID(*r.ApplicantUserID) {
		errors["applicant_user_id"] = "Invalid applicant user ID"
	}

	return errors
}

type AddDocumentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FileURL     string `json:"file_url"`
	FileType    string `json:"file_type,omitempty"`
	IsRequired  bool   `json:"is_required,omitempty"`
}

func (r AddDocumentRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Document name is required"
	}
	if r.FileURL == "" {
		errors["file_url"] = "File URL is required"
	}

	return errors
}

type AddNoteRequest struct {
	Content   string `json:"content"`
	IsPrivate bool   `json:"is_private,omitempty"`
}

func (r AddNoteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Content == "" {
		errors["content"] = "Note content is required"
	}

	return errors
}

type AssignCaseRequest struct {
	AssignedTo string `json:"assigned_to"`
}

func (r AssignCaseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.AssignedTo == "" {
		errors["assigned_to"] = "Assignee is required"
	} else if !validation.IsValidUUID(r.AssignedTo) {
		errors["assigned_to"] = "Invalid assignee ID"
	}

	return errors
}
