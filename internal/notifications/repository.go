package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/database"
)

// QueueRepository persists message_notification_queue.
type QueueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository creates a queue repository.
func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

// Upsert appends messageID to each recipient's pending entry for the event, creating entries
// that do not exist. One statement, so concurrent posts never lose an append.
func (r *QueueRepository) Upsert(ctx context.Context, eventID, messageID uuid.UUID, recipients []uuid.UUID) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}
	const q = `INSERT INTO message_notification_queue (recipient_id, event_id, message_ids)
		SELECT r, $1, ARRAY[$2::uuid] FROM unnest($3::uuid[]) AS r
		ON CONFLICT (recipient_id, event_id) WHERE processed_at IS NULL
		DO UPDATE SET message_ids = array_append(message_notification_queue.message_ids, $2::uuid),
		              updated_at = NOW()`
	tag, err := r.pool.Exec(ctx, q, eventID, messageID, recipients)
	if err != nil {
		return 0, fmt.Errorf("upsert notification queue: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListPending returns every unprocessed entry, oldest first.
func (r *QueueRepository) ListPending(ctx context.Context) ([]*models.MessageNotificationEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, recipient_id, event_id, message_ids, processed_at, created_at, updated_at
		FROM message_notification_queue
		WHERE processed_at IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.MessageNotificationEntry, error) {
		var e models.MessageNotificationEntry
		err := row.Scan(&e.ID, &e.RecipientID, &e.EventID, &e.MessageIDs, &e.ProcessedAt, &e.CreatedAt, &e.UpdatedAt)
		return &e, err
	})
}

// MarkProcessed closes a pending entry. Already processed entries are left untouched.
func (r *QueueRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE message_notification_queue
		SET processed_at = $2, updated_at = NOW()
		WHERE id = $1 AND processed_at IS NULL`, id, at)
	return err
}

// PreferencesRepository persists notification_preferences.
type PreferencesRepository struct {
	pool *pgxpool.Pool
}

// NewPreferencesRepository creates a preferences repository.
func NewPreferencesRepository(pool *pgxpool.Pool) *PreferencesRepository {
	return &PreferencesRepository{pool: pool}
}

// Get returns the user's preferences, or the defaults when none are saved.
func (r *PreferencesRepository) Get(ctx context.Context, userID uuid.UUID) (models.NotificationPreference, error) {
	p := models.DefaultNotificationPreference(userID)
	err := r.pool.QueryRow(ctx, `SELECT email_updates, weekly_digest, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID).Scan(&p.EmailUpdates, &p.WeeklyDigest, &p.UpdatedAt)
	if err != nil && !database.IsNoRows(err) {
		return p, err
	}
	return p, nil
}

// Save upserts the user's preferences.
func (r *PreferencesRepository) Save(ctx context.Context, p *models.NotificationPreference) error {
	return r.pool.QueryRow(ctx, `INSERT INTO notification_preferences (user_id, email_updates, weekly_digest)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET email_updates = EXCLUDED.email_updates, weekly_digest = EXCLUDED.weekly_digest, updated_at = NOW()
		RETURNING updated_at`, p.UserID, p.EmailUpdates, p.WeeklyDigest).Scan(&p.UpdatedAt)
}

// ListDigestSubscribers returns volunteers who opted into the weekly digest and not out of email.
func (r *PreferencesRepository) ListDigestSubscribers(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT v.user_id, v.full_name, v.email
		FROM notification_preferences p
		INNER JOIN volunteers v ON v.user_id = p.user_id
		WHERE p.weekly_digest = TRUE AND p.email_updates = TRUE AND v.email <> ''
		ORDER BY v.user_id`)
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Contact, error) {
		c := models.Contact{Source: models.ContactVolunteer}
		err := row.Scan(&c.UserID, &c.Name, &c.Email)
		return c, err
	})
}
