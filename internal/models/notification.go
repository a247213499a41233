package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageNotificationEntry is a pending notice that recipient has unseen chat activity on an event.
// Pending while ProcessedAt is nil; at most one pending entry exists per (recipient, event).
type MessageNotificationEntry struct {
	ID          uuid.UUID   `json:"id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	EventID     uuid.UUID   `json:"event_id"`
	MessageIDs  []uuid.UUID `json:"message_ids"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NotificationPreference is a user's email opt-in state. A missing row means the defaults.
type NotificationPreference struct {
	UserID       uuid.UUID `json:"user_id"`
	EmailUpdates bool      `json:"email_updates"`
	WeeklyDigest bool      `json:"weekly_digest"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultNotificationPreference is applied when a user has never saved preferences.
func DefaultNotificationPreference(userID uuid.UUID) NotificationPreference {
	return NotificationPreference{UserID: userID, EmailUpdates: true, WeeklyDigest: false}
}
