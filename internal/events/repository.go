package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/database"
)

// Repository handles events and event_signups persistence.
type Repository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var eventColumns = []string{
	"id", "organization_id", "title", "COALESCE(description, '')", "COALESCE(location, '')",
	"starts_at", "ends_at", "created_by", "created_at", "updated_at",
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
		&e.StartsAt, &e.EndsAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("event not found")
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (organization_id, title, description, location, starts_at, ends_at, created_by)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event or a NotFound error.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query, args, err := r.sb.Select(eventColumns...).From("events").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get event query: %w", err)
	}
	return scanEvent(r.pool.QueryRow(ctx, query, args...))
}

// ListFilter narrows GET /events.
type ListFilter struct {
	OrganizationID *uuid.UUID
	UpcomingAfter  *time.Time // only events starting after this instant
	CreatedSince   *time.Time
	Limit          uint64
	Offset         uint64
}

// List returns events ordered by start time.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Event, error) {
	where := squirrel.And{}
	if f.OrganizationID != nil {
		where = append(where, squirrel.Eq{"organization_id": *f.OrganizationID})
	}
	if f.UpcomingAfter != nil {
		where = append(where, squirrel.Gt{"starts_at": *f.UpcomingAfter})
	}
	if f.CreatedSince != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *f.CreatedSince})
	}
	sel := r.sb.Select(eventColumns...).From("events").Where(where).OrderBy("starts_at ASC", "id ASC")
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel = sel.Offset(f.Offset)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list events query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	list := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// EndedBetween returns events whose end time lies in [from, to].
func (r *Repository) EndedBetween(ctx context.Context, from, to time.Time) ([]*models.Event, error) {
	query, args, err := r.sb.Select(eventColumns...).From("events").
		Where(squirrel.GtOrEq{"ends_at": from}).
		Where(squirrel.LtOrEq{"ends_at": to}).
		OrderBy("ends_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ended events query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

const signupColumns = `id, event_id, volunteer_id, status, created_at, updated_at`

func scanSignup(row pgx.Row) (*models.EventSignup, error) {
	var s models.EventSignup
	if err := row.Scan(&s.ID, &s.EventID, &s.VolunteerID, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("signup not found")
		}
		return nil, err
	}
	return &s, nil
}

// CreateSignup inserts a signup. A second signup for the same event is a Conflict.
func (r *Repository) CreateSignup(ctx context.Context, eventID, volunteerID uuid.UUID, status string) (*models.EventSignup, error) {
	s, err := scanSignup(r.pool.QueryRow(ctx, `INSERT INTO event_signups (event_id, volunteer_id, status)
		VALUES ($1, $2, $3) RETURNING `+signupColumns, eventID, volunteerID, status))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("already signed up for this event")
		}
		return nil, fmt.Errorf("insert signup: %w", err)
	}
	return s, nil
}

// DeleteSignup removes the volunteer's signup (withdrawal).
func (r *Repository) DeleteSignup(ctx context.Context, eventID, volunteerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_signups WHERE event_id = $1 AND volunteer_id = $2`, eventID, volunteerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("signup not found")
	}
	return nil
}

// GetSignup returns the volunteer's signup for the event.
func (r *Repository) GetSignup(ctx context.Context, eventID, volunteerID uuid.UUID) (*models.EventSignup, error) {
	return scanSignup(r.pool.QueryRow(ctx, `SELECT `+signupColumns+`
		FROM event_signups WHERE event_id = $1 AND volunteer_id = $2`, eventID, volunteerID))
}

// HasConfirmedSignup reports whether the user holds a CONFIRMED signup for the event.
func (r *Repository) HasConfirmedSignup(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM event_signups WHERE event_id = $1 AND volunteer_id = $2 AND status = $3)`,
		eventID, userID, models.SignupConfirmed).Scan(&ok)
	return ok, err
}

// UpdateSignupStatus sets the status of a signup that belongs to the event.
func (r *Repository) UpdateSignupStatus(ctx context.Context, eventID, signupID uuid.UUID, status string) (*models.EventSignup, error) {
	return scanSignup(r.pool.QueryRow(ctx, `UPDATE event_signups SET status = $3, updated_at = NOW()
		WHERE id = $2 AND event_id = $1 RETURNING `+signupColumns, eventID, signupID, status))
}

// ListSignups returns the event's signups joined with volunteer profiles. status filters when non-empty.
func (r *Repository) ListSignups(ctx context.Context, eventID uuid.UUID, status string) ([]*models.SignupWithVolunteer, error) {
	sel := r.sb.Select("s.id", "s.event_id", "s.volunteer_id", "s.status", "s.created_at", "s.updated_at",
		"COALESCE(v.full_name, '')", "COALESCE(v.email, u.email)", "COALESCE(v.school, '')").
		From("event_signups s").
		Join("users u ON u.id = s.volunteer_id").
		LeftJoin("volunteers v ON v.user_id = s.volunteer_id").
		Where(squirrel.Eq{"s.event_id": eventID}).
		OrderBy("s.created_at ASC")
	if status != "" {
		sel = sel.Where(squirrel.Eq{"s.status": status})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list signups query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.SignupWithVolunteer{}
	for rows.Next() {
		var s models.SignupWithVolunteer
		if err := rows.Scan(&s.ID, &s.EventID, &s.VolunteerID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&s.FullName, &s.Email, &s.School); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// ConfirmedVolunteerIDs returns user ids with a CONFIRMED signup for the event.
func (r *Repository) ConfirmedVolunteerIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.pool, `SELECT volunteer_id FROM event_signups WHERE event_id = $1 AND status = $2`,
		eventID, models.SignupConfirmed)
}

// OrganizationMemberIDs returns user ids of every member of the organization.
func (r *Repository) OrganizationMemberIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.pool, `SELECT user_id FROM organization_members WHERE organization_id = $1`, orgID)
}

// IsOrganizationMember reports whether the user belongs to the organization.
func (r *Repository) IsOrganizationMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`, orgID, userID).Scan(&ok)
	return ok, err
}

func collectIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
