package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType tags an audit record.
const (
	EmailTypeMessageNotification = "message_notification"
	EmailTypeRatingReminder      = "rating_reminder"
	EmailTypeWeeklyDigest        = "weekly_digest"
)

// EmailLog records a successfully dispatched notification email.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EmailType      string     `json:"email_type"`
	RecipientID    *uuid.UUID `json:"recipient_id,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	ReferenceID    string     `json:"reference_id"`
	Subject        string     `json:"subject,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
	CreatedAt      time.Time  `json:"created_at"`
}
