package cases

import "github.com/meridianlaw/caseflow/internal/database/models"

// transitions is the allowed status graph. on_hold is reachable from every
// non-terminal state and resumes to any working state. closed is terminal.
// Writing the current status back is always a no-op for the guard.
var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusDraft:         {models.StatusSubmitted, models.StatusOnHold},
	models.StatusSubmitted:     {models.StatusInReview, models.StatusOnHold},
	models.StatusInReview:      {models.StatusRFEReceived, models.StatusApproved, models.StatusDenied, models.StatusOnHold},
	models.StatusRFEReceived:   {models.StatusInReview, models.StatusApproved, models.StatusDenied, models.StatusOnHold},
	models.StatusApproved:      {models.StatusClosed},
	models.StatusDenied:        {models.StatusAppealPending, models.StatusClosed},
	models.StatusAppealPending: {models.StatusInReview, models.StatusClosed, models.StatusOnHold},
	models.StatusOnHold: {
		models.StatusDraft, models.StatusSubmitted, models.StatusInReview,
		models.StatusRFEReceived, models.StatusAppealPending, models.StatusClosed,
	},
	models.StatusClosed: {},
}

// ValidTransition reports whether a case may move from one status to
// another.
func ValidTransition(from, to models.CaseStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
