package cases

import (
	"github.com/google/uuid"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"gorm.io/gorm"
)

// Scoped narrows a case query to what the actor may read:
//
//	admin               unrestricted
//	attorney, paralegal assigned to or created by the actor
//	client              cases where the actor is the applicant
//
// Every read path (list, search, due, stats) goes through here before any
// caller-supplied filter is applied. Unknown roles get an empty scope rather
// than an open one.
func Scoped(q *gorm.DB, actorID uuid.UUID, role models.Role) *gorm.DB {
	switch role {
	case models.RoleAdmin:
		return q
	case models.RoleAttorney, models.RoleParalegal:
		return q.Where("assigned_to_id = ? OR created_by_id = ?", actorID, actorID)
	case models.RoleClient:
		return q.Where("applicant_user_id = ?", actorID)
	default:
		return q.Where("1 = 0")
	}
}

// CanCreate reports whether the role may open new cases.
func CanCreate(role models.Role) bool {
	return role == models.RoleAttorney || role == models.RoleAdmin
}

// CanDelete reports whether the role may hard-delete cases.
func CanDelete(role models.Role) bool {
	return role == models.RoleAdmin
}

// CanViewStats reports whether the role may read aggregate statistics.
func CanViewStats(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleAttorney
}

// canModify is the per-object ownership check used by update: admins, the
// creator, and the current assignee.
func canModify(actorID uuid.UUID, role models.Role, c *models.Case) bool {
	if role == models.RoleAdmin {
		return true
	}
	if c.CreatedByID == actorID {
		return true
	}
	return c.AssignedToID != nil && *c.AssignedToID == actorID
}

// canView additionally admits the applicant's own account.
func canView(actorID uuid.UUID, role models.Role, c *models.Case) bool {
	if canModify(actorID, role, c) {
		return true
	}
	return c.ApplicantUserID != nil && *c.ApplicantUserID == actorID
}
