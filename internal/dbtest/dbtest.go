// Package dbtest starts a throwaway Postgres for repository tests and seeds the rows they depend on.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/campusreach/backend/pkg/database"
)

const image = "postgres:16-alpine"

// NewPool starts a migrated Postgres container for t and returns a pool on it. The container is
// removed when t finishes. Skipped with -short or when no container runtime is reachable.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("campusreach"),
		postgres.WithUsername("campusreach"),
		postgres.WithPassword("campusreach"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := database.NewPostgresPool(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, nil))
	return pool
}

// User inserts an account and returns its id.
func User(t testing.TB, pool *pgxpool.Pool, accountType string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	email := fmt.Sprintf("%s@campus.test", uuid.NewString())
	err := pool.QueryRow(context.Background(), `INSERT INTO users (email, password_hash, account_type)
		VALUES ($1, 'x', $2) RETURNING id`, email, accountType).Scan(&id)
	require.NoError(t, err)
	return id
}

// Volunteer inserts a volunteer account with a profile carrying email (may be empty).
func Volunteer(t testing.TB, pool *pgxpool.Pool, name, email string) uuid.UUID {
	t.Helper()
	id := User(t, pool, "volunteer")
	_, err := pool.Exec(context.Background(), `INSERT INTO volunteers (user_id, full_name, email) VALUES ($1, $2, $3)`, id, name, email)
	require.NoError(t, err)
	return id
}

// Organization inserts an organization and returns its id.
func Organization(t testing.TB, pool *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `INSERT INTO organizations (name, slug) VALUES ($1, $2) RETURNING id`,
		name, "org-"+uuid.NewString()[:8]).Scan(&id)
	require.NoError(t, err)
	return id
}

// Member adds userID to orgID with the given member profile.
func Member(t testing.TB, pool *pgxpool.Pool, orgID, userID uuid.UUID, name, email string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO organization_members (organization_id, user_id, full_name, email, role)
		VALUES ($1, $2, $3, $4, 'member')`, orgID, userID, name, email)
	require.NoError(t, err)
}

// Event inserts an event starting tomorrow. orgID may be nil.
func Event(t testing.TB, pool *pgxpool.Pool, orgID *uuid.UUID, title string) uuid.UUID {
	t.Helper()
	creator := User(t, pool, "organization")
	start := time.Now().Add(24 * time.Hour)
	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `INSERT INTO events (organization_id, title, starts_at, ends_at, created_by)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, orgID, title, start, start.Add(3*time.Hour), creator).Scan(&id)
	require.NoError(t, err)
	return id
}
