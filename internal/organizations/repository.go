package organizations

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

// Repository handles organizations and organization_members persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, slug, COALESCE(description, ''), COALESCE(logo_key, ''), created_at, updated_at`

const memberColumns = `id, organization_id, user_id, full_name, email, role, COALESCE(avatar_key, ''), created_at, updated_at`

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Description, &o.LogoKey, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("organization not found")
		}
		return nil, err
	}
	return &o, nil
}

func scanMember(row pgx.Row) (*models.OrganizationMember, error) {
	var m models.OrganizationMember
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.FullName, &m.Email, &m.Role, &m.AvatarKey, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("organization member not found")
		}
		return nil, err
	}
	return &m, nil
}

// CreateWithOwner creates an organization and adds owner as its first member in one transaction.
func (r *Repository) CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.OrganizationMember) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `INSERT INTO organizations (name, slug, description)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at, updated_at`, org.Name, org.Slug, org.Description).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Conflict("an organization with this slug already exists")
		}
		return fmt.Errorf("insert organization: %w", err)
	}

	owner.OrganizationID = org.ID
	owner.Role = models.OrgRoleOwner
	err = tx.QueryRow(ctx, `INSERT INTO organization_members (organization_id, user_id, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`, owner.OrganizationID, owner.UserID, owner.FullName, owner.Email, owner.Role).
		Scan(&owner.ID, &owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// SetLogoKey records the S3 key of the organization's logo.
func (r *Repository) SetLogoKey(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE organizations SET logo_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("organization not found")
	}
	return nil
}

// AddMember inserts a member, or updates the role and name of an existing one.
func (r *Repository) AddMember(ctx context.Context, m *models.OrganizationMember) error {
	const q = `INSERT INTO organization_members (organization_id, user_id, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, user_id) DO UPDATE
		SET role = EXCLUDED.role,
		    full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), organization_members.full_name),
		    updated_at = NOW()
		RETURNING ` + memberColumns
	got, err := scanMember(r.pool.QueryRow(ctx, q, m.OrganizationID, m.UserID, m.FullName, m.Email, m.Role))
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	*m = *got
	return nil
}

// GetMember returns the user's membership in the organization, or a NotFound error.
func (r *Repository) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID))
}

// IsMember reports whether the user belongs to the organization.
func (r *Repository) IsMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`,
		orgID, userID).Scan(&ok)
	return ok, err
}

// UpdateMemberProfile changes the caller's display name within one organization.
func (r *Repository) UpdateMemberProfile(ctx context.Context, orgID, userID uuid.UUID, fullName string) (*models.OrganizationMember, error) {
	return scanMember(r.pool.QueryRow(ctx, `UPDATE organization_members
		SET full_name = $3, updated_at = NOW()
		WHERE organization_id = $1 AND user_id = $2
		RETURNING `+memberColumns, orgID, userID, fullName))
}

// ListOrganizationsForUser returns organizations the user is a member of.
func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.id, o.name, o.slug, COALESCE(o.description, ''), COALESCE(o.logo_key, ''), o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// ListMembers returns members of an organization, oldest first.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+`
		FROM organization_members WHERE organization_id = $1 ORDER BY created_at ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.OrganizationMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
