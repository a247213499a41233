package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled volunteer activity.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasEnded reports whether the event finished before now.
func (e *Event) HasEnded(now time.Time) bool {
	return !e.EndsAt.After(now)
}

// Signup statuses.
const (
	SignupConfirmed = "CONFIRMED"
	SignupPending   = "PENDING"
	SignupCancelled = "CANCELLED"
)

// ValidSignupStatus reports whether s is a known signup status.
func ValidSignupStatus(s string) bool {
	return s == SignupConfirmed || s == SignupPending || s == SignupCancelled
}

// EventSignup links a volunteer to an event.
type EventSignup struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SignupWithVolunteer is a signup joined with the volunteer's profile (organizer views, exports).
type SignupWithVolunteer struct {
	EventSignup
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	School   string `json:"school,omitempty"`
}
