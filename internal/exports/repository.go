package exports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/database"
)

// Repository handles export_jobs and the queries that feed exports.
type Repository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewRepository creates an exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const jobColumns = `id, organization_id, requested_by, kind, format, event_id, status,
	COALESCE(s3_key, ''), COALESCE(error_message, ''), created_at, updated_at`

func scanJob(row pgx.Row) (*models.ExportJob, error) {
	var j models.ExportJob
	err := row.Scan(&j.ID, &j.OrganizationID, &j.RequestedBy, &j.Kind, &j.Format, &j.EventID, &j.Status,
		&j.S3Key, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("export not found")
		}
		return nil, err
	}
	return &j, nil
}

// Create inserts a pending export job.
func (r *Repository) Create(ctx context.Context, j *models.ExportJob) error {
	const q = `INSERT INTO export_jobs (organization_id, requested_by, kind, format, event_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	j.Status = models.ExportStatusPending
	return r.pool.QueryRow(ctx, q, j.OrganizationID, j.RequestedBy, j.Kind, j.Format, j.EventID, j.Status).
		Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
}

// GetByID returns an export job or NotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExportJob, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id))
}

// MarkProcessing moves a job to processing.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, models.ExportStatusProcessing, "", "")
}

// MarkCompleted records the uploaded object key.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, key string) error {
	return r.setStatus(ctx, id, models.ExportStatusCompleted, key, "")
}

// MarkFailed records why the export gave up.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, models.ExportStatusFailed, "", reason)
}

func (r *Repository) setStatus(ctx context.Context, id uuid.UUID, status, key, reason string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE export_jobs
		SET status = $2, s3_key = COALESCE(NULLIF($3, ''), s3_key), error_message = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1`, id, status, key, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("export not found")
	}
	return nil
}

// Load runs the query behind job and returns its rows.
func (r *Repository) Load(ctx context.Context, job *models.ExportJob) (*Table, error) {
	switch job.Kind {
	case models.ExportKindSignups:
		return r.signups(ctx, job)
	case models.ExportKindChat:
		return r.chat(ctx, job)
	case models.ExportKindRatings:
		return r.ratings(ctx, job)
	default:
		return nil, fmt.Errorf("unknown export kind %q", job.Kind)
	}
}

// scoped restricts a query over events e to the job's organization and, when set, event.
func scoped(sel squirrel.SelectBuilder, job *models.ExportJob) squirrel.SelectBuilder {
	sel = sel.Where(squirrel.Eq{"e.organization_id": job.OrganizationID})
	if job.EventID != nil {
		sel = sel.Where(squirrel.Eq{"e.id": *job.EventID})
	}
	return sel
}

func (r *Repository) table(ctx context.Context, sel squirrel.SelectBuilder, columns []string, scan func(pgx.Rows) ([]string, error)) (*Table, error) {
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build export query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("run export query: %w", err)
	}
	defer rows.Close()
	t := &Table{Columns: columns}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, rows.Err()
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func (r *Repository) signups(ctx context.Context, job *models.ExportJob) (*Table, error) {
	sel := scoped(r.sb.Select("e.title", "COALESCE(v.full_name, '')", "COALESCE(v.email, u.email)",
		"COALESCE(v.school, '')", "s.status", "s.created_at").
		From("event_signups s").
		Join("events e ON e.id = s.event_id").
		Join("users u ON u.id = s.volunteer_id").
		LeftJoin("volunteers v ON v.user_id = s.volunteer_id").
		OrderBy("e.starts_at ASC", "s.created_at ASC"), job)
	columns := []string{"event", "volunteer", "email", "school", "status", "signed_up_at"}
	return r.table(ctx, sel, columns, func(rows pgx.Rows) ([]string, error) {
		var title, name, email, school, status string
		var at time.Time
		if err := rows.Scan(&title, &name, &email, &school, &status, &at); err != nil {
			return nil, err
		}
		return []string{title, name, email, school, status, stamp(at)}, nil
	})
}

func (r *Repository) chat(ctx context.Context, job *models.ExportJob) (*Table, error) {
	sel := scoped(r.sb.Select("e.title", "c.created_at", "c.author_type",
		"COALESCE(v.full_name, m.full_name, '')", "c.kind", "c.body").
		From("chat_messages c").
		Join("events e ON e.id = c.event_id").
		LeftJoin("volunteers v ON v.user_id = c.author_id").
		LeftJoin("organization_members m ON m.user_id = c.author_id AND m.organization_id = e.organization_id").
		OrderBy("e.starts_at ASC", "c.created_at ASC", "c.seq ASC"), job)
	columns := []string{"event", "sent_at", "author_type", "author", "kind", "body"}
	return r.table(ctx, sel, columns, func(rows pgx.Rows) ([]string, error) {
		var title, authorType, author, kind, body string
		var at time.Time
		if err := rows.Scan(&title, &at, &authorType, &author, &kind, &body); err != nil {
			return nil, err
		}
		return []string{title, stamp(at), authorType, author, kind, body}, nil
	})
}

func (r *Repository) ratings(ctx context.Context, job *models.ExportJob) (*Table, error) {
	sel := scoped(r.sb.Select("e.title", "COALESCE(v.full_name, '')", "rt.score", "COALESCE(rt.comment, '')", "rt.created_at").
		From("ratings rt").
		Join("events e ON e.id = rt.event_id").
		LeftJoin("volunteers v ON v.user_id = rt.volunteer_id").
		OrderBy("e.starts_at ASC", "rt.created_at ASC"), job)
	columns := []string{"event", "volunteer", "score", "comment", "rated_at"}
	return r.table(ctx, sel, columns, func(rows pgx.Rows) ([]string, error) {
		var title, name, comment string
		var score int
		var at time.Time
		if err := rows.Scan(&title, &name, &score, &comment, &at); err != nil {
			return nil, err
		}
		return []string{title, name, strconv.Itoa(score), comment, stamp(at)}, nil
	})
}
