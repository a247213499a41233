package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization hosts events.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	LogoKey     string    `json:"logo_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Organization member roles.
const (
	OrgRoleOwner   = "owner"
	OrgRoleManager = "manager"
	OrgRoleMember  = "member"
)

// OrganizationMember links a user to an organization and carries the member's display profile.
type OrganizationMember struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	AvatarKey      string    `json:"avatar_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CanManage reports whether the member may add members or change signups.
func (m *OrganizationMember) CanManage() bool {
	return m.Role == OrgRoleOwner || m.Role == OrgRoleManager
}
