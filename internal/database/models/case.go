package models

import (
	"time"

	"github.com/google/uuid"
)

type CaseType string

const (
	CaseTypeGreenCard          CaseType = "green_card"
	CaseTypeCitizenship        CaseType = "citizenship"
	CaseTypeVisa               CaseType = "visa"
	CaseTypeAsylum             CaseType = "asylum"
	CaseTypeWorkPermit         CaseType = "work_permit"
	CaseTypeFamilyPetition     CaseType = "family_petition"
	CaseTypeDeportationDefense CaseType = "deportation_defense"
	CaseTypeOther              CaseType = "other"
)

func (t CaseType) Valid() bool {
	switch t {
	case CaseTypeGreenCard, CaseTypeCitizenship, CaseTypeVisa, CaseTypeAsylum,
		CaseTypeWorkPermit, CaseTypeFamilyPetition, CaseTypeDeportationDefense,
		CaseTypeOther:
		return true
	}
	return false
}

type CaseStatus string

const (
	StatusDraft         CaseStatus = "draft"
	StatusSubmitted     CaseStatus = "submitted"
	StatusInReview      CaseStatus = "in_review"
	StatusRFEReceived   CaseStatus = "rfe_received"
	StatusApproved      CaseStatus = "approved"
	StatusDenied        CaseStatus = "denied"
	StatusAppealPending CaseStatus = "appeal_pending"
	StatusClosed        CaseStatus = "closed"
	StatusOnHold        CaseStatus = "on_hold"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusRFEReceived,
		StatusApproved, StatusDenied, StatusAppealPending, StatusClosed,
		StatusOnHold:
		return true
	}
	return false
}

// Terminal reports whether no further work happens on a case in this status.
// Due-date queries exclude terminal cases.
func (s CaseStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusClosed:
		return true
	}
	return false
}

type CasePriority string

const (
	PriorityLow    CasePriority = "low"
	PriorityMedium CasePriority = "medium"
	PriorityHigh   CasePriority = "high"
	PriorityUrgent CasePriority = "urgent"
)

func (p CasePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Applicant is the primary subject of a case. It is an embedded profile, not
// a User account; ApplicantUserID on the case links to an account when the
// applicant is also a portal user. Name fields are flattened to columns so
// search and the last-name index work.
type Applicant struct {
	FirstName   string     `gorm:"column:applicant_first_name;index:idx_cases_applicant_name,priority:2" json:"first_name"`
	LastName    string     `gorm:"column:applicant_last_name;index:idx_cases_applicant_name,priority:1" json:"last_name"`
	MiddleName  string     `gorm:"column:applicant_middle_name" json:"middle_name,omitempty"`
	DateOfBirth *time.Time `gorm:"column:applicant_date_of_birth" json:"date_of_birth,omitempty"`
	Email       string     `gorm:"column:applicant_email" json:"email"`
	Phone       string     `gorm:"column:applicant_phone" json:"phone,omitempty"`
	Address     Address    `gorm:"column:applicant_address;serializer:json" json:"address"`
	AlienNumber string     `gorm:"column:applicant_alien_number" json:"alien_number,omitempty"`
	Nationality string     `gorm:"column:applicant_nationality" json:"nationality,omitempty"`
}

// Beneficiary is a dependent or family member attached to a case.
type Beneficiary struct {
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	MiddleName   string     `json:"middle_name,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Relationship string     `json:"relationship,omitempty"`
	AlienNumber  string     `json:"alien_number,omitempty"`
	Nationality  string     `json:"nationality,omitempty"`
}

type DocumentStatus string

const (
	DocumentPending     DocumentStatus = "pending"
	DocumentApproved    DocumentStatus = "approved"
	DocumentRejected    DocumentStatus = "rejected"
	DocumentNeedsReview DocumentStatus = "needs_review"
)

type CaseDocument struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	FileURL     string         `json:"file_url"`
	FileType    string         `json:"file_type,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	UploadedBy  uuid.UUID      `json:"uploaded_by"`
	IsRequired  bool           `json:"is_required"`
	Status      DocumentStatus `json:"status"`
}

type FormStatus string

const (
	FormNotStarted FormStatus = "not_started"
	FormInProgress FormStatus = "in_progress"
	FormCompleted  FormStatus = "completed"
	FormSubmitted  FormStatus = "submitted"
)

type CaseForm struct {
	FormType       string     `json:"form_type"`
	FormNumber     string     `json:"form_number"`
	Status         FormStatus `json:"status"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
}

type CaseNote struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	IsPrivate bool      `json:"is_private"`
}

// AgencyInfo tracks the case on the external agency's side.
type AgencyInfo struct {
	ReceiptNumber    string     `json:"receipt_number,omitempty"`
	CaseStatus       string     `json:"case_status,omitempty"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
	ProcessingCenter string     `json:"processing_center,omitempty"`
}

type CasePayment struct {
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	Description   string     `json:"description,omitempty"`
	ReceiptURL    string     `json:"receipt_url,omitempty"`
}

// HistoryEntry records the status a case held before an update. The history
// slice is append-only; entries are never edited or removed.
type HistoryEntry struct {
	PreviousStatus CaseStatus `json:"previous_status"`
	UpdatedAt      time.Time  `json:"updated_at"`
	UpdatedBy      uuid.UUID  `json:"updated_by"`
}

// CaseDates holds the named milestone dates. DueDate is a real column on the
// case so the due-within query can use the index.
type CaseDates struct {
	FilingDate     *time.Time `json:"filing_date,omitempty"`
	PriorityDate   *time.Time `json:"priority_date,omitempty"`
	BiometricsDate *time.Time `json:"biometrics_date,omitempty"`
	InterviewDate  *time.Time `json:"interview_date,omitempty"`
	ReceivedDate   *time.Time `json:"received_date,omitempty"`
	DecisionDate   *time.Time `json:"decision_date,omitempty"`
}

type Case struct {
	Base
	CaseNumber string       `gorm:"uniqueIndex;not null" json:"case_number"`
	CaseType   CaseType     `gorm:"not null;index;default:'other'" json:"case_type"`
	Status     CaseStatus   `gorm:"not null;index;default:'draft'" json:"status"`
	Priority   CasePriority `gorm:"default:'medium'" json:"priority"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Applicant Applicant `gorm:"embedded" json:"applicant"`
	// Links the applicant to a portal account; client reads are scoped to it.
	ApplicantUserID *uuid.UUID `gorm:"type:uuid;index" json:"applicant_user_id,omitempty"`

	Beneficiaries []Beneficiary  `gorm:"serializer:json" json:"beneficiaries,omitempty"`
	Dates         CaseDates      `gorm:"serializer:json" json:"dates"`
	DueDate       *time.Time     `gorm:"index" json:"due_date,omitempty"`
	Documents     []CaseDocument `gorm:"serializer:json" json:"documents,omitempty"`
	Forms         []CaseForm     `gorm:"serializer:json" json:"forms,omitempty"`
	Notes         []CaseNote     `gorm:"serializer:json" json:"notes,omitempty"`
	Agency        AgencyInfo     `gorm:"serializer:json" json:"agency"`
	Payments      []CasePayment  `gorm:"serializer:json" json:"payments,omitempty"`
	History       []HistoryEntry `gorm:"serializer:json" json:"history,omitempty"`
	Tags          []string       `gorm:"serializer:json" json:"tags,omitempty"`

	AssignedToID    *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	CreatedByID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"created_by_id"`
	LastUpdatedByID *uuid.UUID `gorm:"type:uuid" json:"last_updated_by_id,omitempty"`

	// Stamped on the first transition to submitted; feeds processing-time
	// statistics.
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	IsArchived bool `gorm:"default:false" json:"is_archived"`

	AssignedTo *User `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	CreatedBy  *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

func (Case) TableName() string {
	return "cases"
}

// CaseCounter allocates case-number sequences. One row per year-month
// bucket; the sequence is advanced with a single conditional upsert so two
// concurrent creates can never draw the same number.
type CaseCounter struct {
	Bucket   string `gorm:"primaryKey;size:4"` // YYMM
	Sequence int    `gorm:"not null;default:0"`
}

func (CaseCounter) TableName() string {
	return "case_counters"
}
