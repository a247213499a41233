package models

import (
	"time"

	"github.com/google/uuid"
)

// Export kinds and formats.
const (
	ExportKindSignups = "signups"
	ExportKindChat    = "chat"
	ExportKindRatings = "ratings"

	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"
)

// Export job statuses.
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// ExportJob is an organization's request for a data export.
type ExportJob struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	RequestedBy    uuid.UUID  `json:"requested_by"`
	Kind           string     `json:"kind"`
	Format         string     `json:"format"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	Status         string     `json:"status"`
	S3Key          string     `json:"s3_key,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
