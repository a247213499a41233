package profiles

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/database"
)

// Repository handles volunteer profiles and the cross-table contact lookup.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetVolunteer returns the volunteer profile for a user.
func (r *Repository) GetVolunteer(ctx context.Context, userID uuid.UUID) (*models.Volunteer, error) {
	const q = `SELECT user_id, full_name, email, COALESCE(school, ''), COALESCE(bio, ''), COALESCE(avatar_key, ''), created_at, updated_at
		FROM volunteers WHERE user_id = $1`
	var v models.Volunteer
	err := r.pool.QueryRow(ctx, q, userID).Scan(&v.UserID, &v.FullName, &v.Email, &v.School, &v.Bio, &v.AvatarKey, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("volunteer profile not found")
		}
		return nil, err
	}
	return &v, nil
}

// UpsertVolunteer creates or replaces the editable fields of a volunteer profile.
func (r *Repository) UpsertVolunteer(ctx context.Context, v *models.Volunteer) error {
	const q = `INSERT INTO volunteers (user_id, full_name, email, school, bio)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, school = EXCLUDED.school, bio = EXCLUDED.bio, updated_at = NOW()
		RETURNING email, COALESCE(avatar_key, ''), created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.UserID, v.FullName, v.Email, v.School, v.Bio).
		Scan(&v.Email, &v.AvatarKey, &v.CreatedAt, &v.UpdatedAt)
}

// SetAvatarKey records the avatar on the volunteer profile and on every membership of the user.
func (r *Repository) SetAvatarKey(ctx context.Context, userID uuid.UUID, key string) error {
	const q = `UPDATE volunteers SET avatar_key = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, userID, key); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE organization_members SET avatar_key = $2, updated_at = NOW() WHERE user_id = $1`, userID, key)
	return err
}

// LookupContact resolves a user's display info: volunteer profile first, then an organization
// membership (the one in preferOrg when given). A volunteer profile without an email falls through
// to the membership. found is false when neither exists.
func (r *Repository) LookupContact(ctx context.Context, userID uuid.UUID, preferOrg *uuid.UUID) (models.Contact, bool, error) {
	var volunteer, member *models.Contact

	v := models.Contact{UserID: userID, Source: models.ContactVolunteer}
	err := r.pool.QueryRow(ctx, `SELECT full_name, email, COALESCE(avatar_key, '') FROM volunteers WHERE user_id = $1`, userID).
		Scan(&v.Name, &v.Email, &v.AvatarKey)
	switch {
	case err == nil:
		if v.Email != "" {
			return v, true, nil
		}
		volunteer = &v
	case !database.IsNoRows(err):
		return models.Contact{UserID: userID}, false, err
	}

	m := models.Contact{UserID: userID, Source: models.ContactOrganizationMember}
	err = r.pool.QueryRow(ctx, `SELECT m.full_name, m.email, COALESCE(m.avatar_key, ''), o.name
		FROM organization_members m
		INNER JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY (m.organization_id = $2) DESC, (m.email = '') ASC, m.created_at ASC
		LIMIT 1`, userID, preferOrg).
		Scan(&m.Name, &m.Email, &m.AvatarKey, &m.OrganizationName)
	switch {
	case err == nil:
		member = &m
	case !database.IsNoRows(err):
		return models.Contact{UserID: userID}, false, err
	}
	return pickContact(userID, volunteer, member)
}

// pickContact prefers the volunteer profile unless only the membership carries an email.
func pickContact(userID uuid.UUID, volunteer, member *models.Contact) (models.Contact, bool, error) {
	switch {
	case volunteer != nil && (volunteer.Email != "" || member == nil || member.Email == ""):
		return *volunteer, true, nil
	case member != nil:
		return *member, true, nil
	default:
		return models.Contact{UserID: userID}, false, nil
	}
}
