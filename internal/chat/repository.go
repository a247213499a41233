package chat

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

// Position is a message's place in the channel order.
type Position struct {
	CreatedAt time.Time
	Seq       int64
}

// Repository handles group_chats and chat_messages persistence.
type Repository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var messageColumns = []string{
	"id", "seq", "chat_id", "event_id", "author_id", "author_type", "kind", "body", "created_at",
}

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.Seq, &m.ChatID, &m.EventID, &m.AuthorID, &m.AuthorType, &m.Kind, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetChatByEvent returns the event's channel or a NotFound error.
func (r *Repository) GetChatByEvent(ctx context.Context, eventID uuid.UUID) (*models.GroupChat, error) {
	var gc models.GroupChat
	err := r.pool.QueryRow(ctx, `SELECT id, event_id, created_at FROM group_chats WHERE event_id = $1`, eventID).
		Scan(&gc.ID, &gc.EventID, &gc.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("chat not found")
		}
		return nil, err
	}
	return &gc, nil
}

// CreateChatWithWelcome creates the event's channel and its system welcome message in one transaction.
// When another request created the channel first, it returns that channel with created=false and
// writes nothing.
func (r *Repository) CreateChatWithWelcome(ctx context.Context, eventID uuid.UUID, welcome string) (*models.GroupChat, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var gc models.GroupChat
	err = tx.QueryRow(ctx, `INSERT INTO group_chats (event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, event_id, created_at`, eventID).Scan(&gc.ID, &gc.EventID, &gc.CreatedAt)
	if database.IsNoRows(err) {
		_ = tx.Rollback(ctx)
		existing, err := r.GetChatByEvent(ctx, eventID)
		if err != nil {
			return nil, false, fmt.Errorf("re-read chat after conflict: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert chat: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO chat_messages (chat_id, event_id, author_id, author_type, kind, body)
		VALUES ($1, $2, NULL, $3, $4, $5)`, gc.ID, eventID, models.AuthorSystem, models.KindAnnouncement, welcome)
	if err != nil {
		return nil, false, fmt.Errorf("insert welcome: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return &gc, true, nil
}

// InsertMessage appends m and fills its ID, Seq and CreatedAt.
func (r *Repository) InsertMessage(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages (chat_id, event_id, author_id, author_type, kind, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, seq, created_at`
	return r.pool.QueryRow(ctx, q, m.ChatID, m.EventID, m.AuthorID, m.AuthorType, m.Kind, m.Body).
		Scan(&m.ID, &m.Seq, &m.CreatedAt)
}

// MessagePosition returns where messageID sits in the channel, or NotFound if it is not in this channel.
func (r *Repository) MessagePosition(ctx context.Context, chatID, messageID uuid.UUID) (*Position, error) {
	var p Position
	err := r.pool.QueryRow(ctx, `SELECT created_at, seq FROM chat_messages WHERE chat_id = $1 AND id = $2`, chatID, messageID).
		Scan(&p.CreatedAt, &p.Seq)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, err
	}
	return &p, nil
}

// ListMessages returns up to limit messages in (created_at, seq) order, strictly after `after` when given.
func (r *Repository) ListMessages(ctx context.Context, chatID uuid.UUID, after *Position, limit int) ([]*models.ChatMessage, error) {
	sel := r.sb.Select(messageColumns...).From("chat_messages").
		Where(squirrel.Eq{"chat_id": chatID}).
		OrderBy("created_at ASC", "seq ASC").
		Limit(uint64(limit))
	if after != nil {
		sel = sel.Where(squirrel.Expr("(created_at, seq) > (?, ?)", after.CreatedAt, after.Seq))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	list := make([]*models.ChatMessage, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
