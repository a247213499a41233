package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records a dispatched email. SentAt defaults to now when zero.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (email_type, recipient_id, recipient_email, reference_id, subject, sent_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), COALESCE($6::timestamptz, NOW()))
		RETURNING id, sent_at, created_at`
	var at *time.Time
	if !el.SentAt.IsZero() {
		at = &el.SentAt
	}
	return r.pool.QueryRow(ctx, q, el.EmailType, el.RecipientID, el.RecipientEmail, el.ReferenceID, el.Subject, at).
		Scan(&el.ID, &el.SentAt, &el.CreatedAt)
}

// Exists reports whether an email of emailType was already sent to recipientID for referenceID.
func (r *Repository) Exists(ctx context.Context, emailType, referenceID string, recipientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM email_logs WHERE email_type = $1 AND reference_id = $2 AND recipient_id = $3)`,
		emailType, referenceID, recipientID).Scan(&ok)
	return ok, err
}

// ListByReference returns email logs for a reference id, newest first.
func (r *Repository) ListByReference(ctx context.Context, referenceID string) ([]*models.EmailLog, error) {
	const q = `SELECT id, email_type, recipient_id, recipient_email, reference_id, COALESCE(subject, ''), sent_at, created_at
		FROM email_logs
		WHERE reference_id = $1
		ORDER BY sent_at DESC`
	rows, err := r.pool.Query(ctx, q, referenceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.EmailLog, error) {
		var el models.EmailLog
		err := row.Scan(&el.ID, &el.EmailType, &el.RecipientID, &el.RecipientEmail, &el.ReferenceID, &el.Subject, &el.SentAt, &el.CreatedAt)
		return &el, err
	})
}

// ListByEvent returns the notification emails sent about an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error) {
	return r.ListByReference(ctx, eventID.String())
}
