package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountType distinguishes the two kinds of CampusReach accounts.
type AccountType string

const (
	AccountVolunteer    AccountType = "volunteer"
	AccountOrganization AccountType = "organization"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountVolunteer || t == AccountOrganization
}

// User represents a platform login.
type User struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	Password    string      `json:"-"`
	AccountType AccountType `json:"account_type"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	AccountType AccountType `json:"account_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Email:       u.Email,
		AccountType: u.AccountType,
		CreatedAt:   u.CreatedAt,
	}
}
