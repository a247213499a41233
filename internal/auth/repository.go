package auth

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

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, account_type, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.AccountType, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by (normalized) email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// CreateUserParams describes a new account.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	AccountType  models.AccountType
	FullName     string
	School       string
}

// Create inserts a user. Volunteer accounts get their volunteer profile in the same transaction.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, account_type)
		VALUES ($1, $2, $3) RETURNING `+userColumns, p.Email, p.PasswordHash, string(p.AccountType)))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("email already registered")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if p.AccountType == models.AccountVolunteer {
		_, err = tx.Exec(ctx, `INSERT INTO volunteers (user_id, full_name, email, school)
			VALUES ($1, $2, $3, NULLIF($4, ''))`, u.ID, p.FullName, u.Email, p.School)
		if err != nil {
			return nil, fmt.Errorf("insert volunteer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}
