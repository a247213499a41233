package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating scores bounds.
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is a volunteer's score for an event they attended.
type Rating struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
