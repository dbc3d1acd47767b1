package models

import (
	"time"
)

// Role is the closed set of account roles. Authorization decisions key off
// this value; anything else stored in the column is treated as no access.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAttorney  Role = "attorney"
	RoleParalegal Role = "paralegal"
	RoleClient    Role = "client"
)

// StaffRoles are the roles assignable through the privileged registration
// path. Public registration always produces a client.
var StaffRoles = map[Role]bool{
	RoleAdmin:     true,
	RoleAttorney:  true,
	RoleParalegal: true,
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAttorney, RoleParalegal, RoleClient:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to firm staff rather than a client.
func (r Role) IsStaff() bool {
	return StaffRoles[r]
}

// Address is stored serialized; it is display data, never queried on.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FirstName    string `gorm:"not null" json:"first_name"`
	LastName     string `gorm:"not null" json:"last_name"`
	Role         Role   `gorm:"not null;default:'client';index" json:"role"`

	// Profile
	Phone           string     `json:"phone,omitempty"`
	Address         Address    `gorm:"serializer:json" json:"address"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	Languages       []string   `gorm:"serializer:json" json:"languages,omitempty"`
	BarNumber       string     `json:"bar_number,omitempty"` // attorneys only
	Specializations []string   `gorm:"serializer:json" json:"specializations,omitempty"`

	// Notification preferences
	NotifyEmail bool `gorm:"default:true" json:"notify_email"`
	NotifySMS   bool `gorm:"default:false" json:"notify_sms"`

	// Accounts are deactivated, never hard-deleted.
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Any token issued before this instant is rejected at verification.
	PasswordChangedAt *time.Time `json:"-"`

	// Password reset: only the SHA-256 hash of the reset token is stored.
	ResetTokenHash   string     `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
