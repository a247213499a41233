package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
)

// PendingQueue is the drain half of the queue store. *QueueRepository implements it.
type PendingQueue interface {
	ListPending(ctx context.Context) ([]*models.MessageNotificationEntry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// EventReader loads one event. *events.Repository implements it.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// MessageSweep drains the message notification queue: one email per pending entry.
// Every visited entry is marked processed, whether or not the email went out.
type MessageSweep struct {
	sweeper
	queue  PendingQueue
	events EventReader
}

// NewMessageSweep creates a MessageSweep.
func NewMessageSweep(queue PendingQueue, events EventReader, opts SweepOptions) *MessageSweep {
	return &MessageSweep{sweeper: newSweeper(SweepMessages, opts), queue: queue, events: events}
}

// MessageSubject is the subject line of a message notification.
func MessageSubject(eventTitle string, count int) string {
	if count == 1 {
		return fmt.Sprintf("New message in %s", eventTitle)
	}
	return fmt.Sprintf("%d new messages in %s", count, eventTitle)
}

// Run processes every pending entry once.
func (s *MessageSweep) Run(ctx context.Context) (Summary, error) {
	defer s.observe(time.Now())
	entries, err := s.queue.ListPending(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list pending notifications: %w", err)
	}
	sum, err := each(ctx, &s.sweeper, entries, func(e *models.MessageNotificationEntry) string {
		defer s.markProcessed(ctx, e)
		return s.process(ctx, e)
	})
	s.Logger.Info("message sweep finished", zap.Int("total", sum.Total), zap.Int("sent", sum.Sent), zap.Int("errors", sum.Errors))
	return sum, err
}

func (s *MessageSweep) process(ctx context.Context, e *models.MessageNotificationEntry) string {
	log := s.Logger.With(zap.String("entry_id", e.ID.String()), zap.String("recipient_id", e.RecipientID.String()))

	out, err := s.optedOut(ctx, e.RecipientID)
	if err != nil {
		log.Error("notification entry failed", zap.Error(err))
		return outcomeFailed
	}
	if out {
		return outcomeSkipped
	}
	event, err := s.events.GetByID(ctx, e.EventID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return outcomeSkipped
		}
		log.Error("load event failed", zap.Error(err))
		return outcomeFailed
	}
	contact, found, err := s.Contacts.LookupContact(ctx, e.RecipientID, event.OrganizationID)
	if err != nil {
		log.Error("load recipient failed", zap.Error(err))
		return outcomeFailed
	}
	if !found || contact.Email == "" {
		return outcomeSkipped
	}

	count := len(e.MessageIDs)
	subject := MessageSubject(event.Title, count)
	data := &MessageNotificationData{
		RecipientName: displayName(contact),
		EventTitle:    event.Title,
		Count:         count,
		ChatURL:       s.Renderer.Links().EventChat(event.ID.String()),
	}
	if !s.deliver(ctx, contact, TemplateMessageNotification, subject, data) {
		return outcomeFailed
	}
	// Mark before the audit row is written.
	s.markProcessed(ctx, e)
	s.record(ctx, contact, models.EmailTypeMessageNotification, event.ID.String(), subject)
	return outcomeSent
}

func (s *MessageSweep) markProcessed(ctx context.Context, e *models.MessageNotificationEntry) {
	if e.ProcessedAt != nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	at := s.Now()
	if err := s.queue.MarkProcessed(ctx, e.ID, at); err != nil {
		s.Logger.Error("mark notification processed failed", zap.String("entry_id", e.ID.String()), zap.Error(err))
		return
	}
	e.ProcessedAt = &at
}
