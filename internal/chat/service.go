// Package chat implements per-event group chat: access decisions, the append-only message log,
// and the hooks that fan new messages out to notifications and live subscribers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/metrics"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	MaxBodyLength    = 4000

	sideEffectTimeout = 5 * time.Second
)

// Store is the message log persistence. *Repository implements it.
type Store interface {
	GetChatByEvent(ctx context.Context, eventID uuid.UUID) (*models.GroupChat, error)
	CreateChatWithWelcome(ctx context.Context, eventID uuid.UUID, welcome string) (*models.GroupChat, bool, error)
	InsertMessage(ctx context.Context, m *models.ChatMessage) error
	MessagePosition(ctx context.Context, chatID, messageID uuid.UUID) (*Position, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, after *Position, limit int) ([]*models.ChatMessage, error)
}

// Enqueuer records pending notifications for everyone on the event but the author.
type Enqueuer interface {
	EnqueueMessage(ctx context.Context, event *models.Event, authorID, messageID uuid.UUID) (int, error)
}

// Publisher pushes a new message to live subscribers of the event.
type Publisher interface {
	PublishChatMessage(ctx context.Context, eventID uuid.UUID, msg *models.ChatMessageView) error
}

// ContactDirectory resolves author display info. *profiles.Directory implements it.
type ContactDirectory interface {
	LookupContact(ctx context.Context, userID uuid.UUID, preferOrg *uuid.UUID) (models.Contact, bool, error)
}

// AvatarSigner turns stored avatar keys into fetchable URLs. *storage.S3 implements it.
type AvatarSigner interface {
	PresignMediaDownload(ctx context.Context, key string) (string, error)
}

// PageQuery selects a page of history. Cursor is the last message id the caller has seen.
type PageQuery struct {
	Cursor *uuid.UUID
	Limit  int
}

// Page is one page of chat history. NextCursor is nil once the history is exhausted.
type Page struct {
	Messages   []*models.ChatMessageView `json:"messages"`
	NextCursor *string                   `json:"next_cursor"`
}

// ParsePageQuery validates the raw cursor and limit query parameters.
// Empty limit means DefaultPageLimit; numeric limits are clamped to 1..MaxPageLimit.
func ParsePageQuery(cursor, limit string) (PageQuery, error) {
	q := PageQuery{Limit: DefaultPageLimit}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		id, err := uuid.Parse(cursor)
		if err != nil {
			return q, apperrors.Validation("cursor must be a message id")
		}
		q.Cursor = &id
	}
	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return q, apperrors.Validation("limit must be an integer")
		}
		q.Limit = clampLimit(n)
	}
	return q, nil
}

func clampLimit(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPageLimit:
		return MaxPageLimit
	default:
		return n
	}
}

// Options wires the optional collaborators of a Service.
type Options struct {
	Enqueuer  Enqueuer
	Publisher Publisher
	Directory ContactDirectory
	Avatars   AvatarSigner
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Service implements chat reads and posts for one caller at a time.
type Service struct {
	guard     *Guard
	store     Store
	enqueuer  Enqueuer
	publisher Publisher
	directory ContactDirectory
	avatars   AvatarSigner
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService creates a chat service.
func NewService(guard *Guard, store Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		guard:     guard,
		store:     store,
		enqueuer:  opts.Enqueuer,
		publisher: opts.Publisher,
		directory: opts.Directory,
		avatars:   opts.Avatars,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Authorize runs the access guard only. Used by the live stream at connect time.
func (s *Service) Authorize(ctx context.Context, eventID, userID uuid.UUID) (*Access, error) {
	return s.guard.Check(ctx, eventID, userID)
}

// WelcomeMessage is the body of the system announcement that opens every channel.
func WelcomeMessage(eventTitle string) string {
	return fmt.Sprintf("Welcome to the %s group chat! Use this space to coordinate with organizers and fellow volunteers.", eventTitle)
}

// EnsureChannel returns the event's channel, creating it with its welcome announcement if absent.
func (s *Service) EnsureChannel(ctx context.Context, event *models.Event) (*models.GroupChat, error) {
	gc, err := s.store.GetChatByEvent(ctx, event.ID)
	if err == nil {
		return gc, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	gc, created, err := s.store.CreateChatWithWelcome(ctx, event.ID, WelcomeMessage(event.Title))
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	if created {
		s.metrics.ChannelCreated()
		s.logger.Info("chat channel created", zap.String("event_id", event.ID.String()), zap.String("chat_id", gc.ID.String()))
	}
	return gc, nil
}

// Append validates and stores one message. authorID nil means a system message.
func (s *Service) Append(ctx context.Context, gc *models.GroupChat, authorID *uuid.UUID, kind models.MessageKind, body string) (*models.ChatMessage, error) {
	body, err := normalizeBody(body)
	if err != nil {
		return nil, err
	}
	m := &models.ChatMessage{
		ChatID:     gc.ID,
		EventID:    gc.EventID,
		AuthorID:   authorID,
		AuthorType: models.AuthorUser,
		Kind:       kind,
		Body:       body,
	}
	if authorID == nil {
		m.AuthorType = models.AuthorSystem
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	s.metrics.ChatMessage(string(kind))
	return m, nil
}

func normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", apperrors.Validation("message body is required")
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", apperrors.Validation(fmt.Sprintf("message body must be at most %d characters", MaxBodyLength))
	}
	return body, nil
}

func parseKind(kind string) (models.MessageKind, error) {
	switch k := models.MessageKind(strings.ToUpper(strings.TrimSpace(kind))); k {
	case "", models.KindMessage:
		return models.KindMessage, nil
	case models.KindAnnouncement:
		return k, nil
	default:
		return "", apperrors.Validation("kind must be MESSAGE or ANNOUNCEMENT")
	}
}

// Read returns a page of the event's history for the caller.
func (s *Service) Read(ctx context.Context, eventID, userID uuid.UUID, q PageQuery) (*Page, error) {
	access, err := s.guard.Check(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	gc, err := s.EnsureChannel(ctx, access.Event)
	if err != nil {
		return nil, err
	}

	var after *Position
	if q.Cursor != nil {
		after, err = s.store.MessagePosition(ctx, gc.ID, *q.Cursor)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Validation("cursor does not belong to this chat")
			}
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
	}
	limit := clampLimit(q.Limit)
	msgs, err := s.store.ListMessages(ctx, gc.ID, after, limit)
	if err != nil {
		return nil, err
	}

	page := &Page{Messages: s.enrich(ctx, access.Event, msgs)}
	if len(msgs) == limit {
		next := msgs[len(msgs)-1].ID.String()
		page.NextCursor = &next
	}
	return page, nil
}

// Post appends the caller's message. Non-members asking for an announcement get a plain message.
// Notification enqueue and live publish run afterwards and never fail the post.
func (s *Service) Post(ctx context.Context, eventID, userID uuid.UUID, body, kind string) (*models.ChatMessageView, error) {
	access, err := s.guard.Check(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	requested, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	if _, err := normalizeBody(body); err != nil {
		return nil, err
	}
	gc, err := s.EnsureChannel(ctx, access.Event)
	if err != nil {
		return nil, err
	}
	author := userID
	m, err := s.Append(ctx, gc, &author, access.Kind(requested), body)
	if err != nil {
		return nil, err
	}

	view := s.enrich(ctx, access.Event, []*models.ChatMessage{m})[0]
	s.afterAppend(ctx, access.Event, view)
	return view, nil
}

func (s *Service) afterAppend(ctx context.Context, event *models.Event, view *models.ChatMessageView) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	logFields := []zap.Field{zap.String("event_id", event.ID.String()), zap.String("message_id", view.ID.String())}
	if s.enqueuer != nil {
		n, err := s.enqueuer.EnqueueMessage(ctx, event, *view.AuthorID, view.ID)
		if err != nil {
			s.metrics.ChatSideEffectError("enqueue")
			s.logger.Error("enqueue chat notifications failed", append(logFields, zap.Error(err))...)
		} else {
			s.metrics.Enqueued(n)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishChatMessage(ctx, event.ID, view); err != nil {
			s.metrics.ChatSideEffectError("publish")
			s.logger.Warn("publish chat message failed", append(logFields, zap.Error(err))...)
		}
	}
}

// enrich attaches author display info. Lookups are best effort: failures leave Author nil.
func (s *Service) enrich(ctx context.Context, event *models.Event, msgs []*models.ChatMessage) []*models.ChatMessageView {
	views := make([]*models.ChatMessageView, len(msgs))
	resolved := make(map[uuid.UUID]*models.AuthorDisplay)
	for i, m := range msgs {
		views[i] = &models.ChatMessageView{ChatMessage: *m}
		if m.AuthorType == models.AuthorSystem || m.AuthorID == nil || s.directory == nil {
			continue
		}
		display, seen := resolved[*m.AuthorID]
		if !seen {
			display = s.lookupAuthor(ctx, *m.AuthorID, event.OrganizationID)
			resolved[*m.AuthorID] = display
		}
		views[i].Author = display
	}
	return views
}

func (s *Service) lookupAuthor(ctx context.Context, authorID uuid.UUID, orgID *uuid.UUID) *models.AuthorDisplay {
	c, found, err := s.directory.LookupContact(ctx, authorID, orgID)
	if err != nil {
		s.logger.Warn("author lookup failed", zap.String("author_id", authorID.String()), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	d := &models.AuthorDisplay{Name: c.Name, Source: c.Source, OrganizationName: c.OrganizationName}
	if c.AvatarKey != "" && s.avatars != nil {
		url, err := s.avatars.PresignMediaDownload(ctx, c.AvatarKey)
		if err != nil {
			s.logger.Warn("presign avatar failed", zap.String("author_id", authorID.String()), zap.Error(err))
		} else {
			d.AvatarURL = url
		}
	}
	return d
}
