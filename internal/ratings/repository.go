package ratings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/database"
)

// Repository handles ratings persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ratings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a rating. A second rating for the same (event, volunteer) is a Conflict.
func (r *Repository) Create(ctx context.Context, rt *models.Rating) error {
	const q = `INSERT INTO ratings (event_id, volunteer_id, score, comment)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, rt.EventID, rt.VolunteerID, rt.Score, rt.Comment).Scan(&rt.ID, &rt.CreatedAt)
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("event already rated")
	}
	return err
}

// HasRated reports whether volunteerID rated eventID.
func (r *Repository) HasRated(ctx context.Context, eventID, volunteerID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ratings WHERE event_id = $1 AND volunteer_id = $2)`,
		eventID, volunteerID).Scan(&ok)
	return ok, err
}

// ListByEvent returns an event's ratings, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.Rating, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, volunteer_id, score, COALESCE(comment, ''), created_at
		FROM ratings WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Rating, error) {
		var rt models.Rating
		err := row.Scan(&rt.ID, &rt.EventID, &rt.VolunteerID, &rt.Score, &rt.Comment, &rt.CreatedAt)
		return &rt, err
	})
}
