package models

import (
	"time"

	"github.com/google/uuid"
)

// Volunteer is the profile of a student volunteer account.
type Volunteer struct {
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	School    string    `json:"school,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarKey string    `json:"avatar_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact sources.
const (
	ContactVolunteer          = "volunteer"
	ContactOrganizationMember = "organization_member"
)

// Contact is the display name and address of a user, resolved volunteer profile first, then membership.
type Contact struct {
	UserID           uuid.UUID
	Name             string
	Email            string
	AvatarKey        string
	Source           string
	OrganizationName string
}
