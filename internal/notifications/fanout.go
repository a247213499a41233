package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusreach/backend/internal/models"
)

// ParticipantSource lists who takes part in an event. *events.Repository implements it.
type ParticipantSource interface {
	ConfirmedVolunteerIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	OrganizationMemberIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
}

// QueueWriter is the enqueue half of the queue store.
type QueueWriter interface {
	Upsert(ctx context.Context, eventID, messageID uuid.UUID, recipients []uuid.UUID) (int, error)
}

// Fanout turns a chat post into pending notifications for every other participant.
type Fanout struct {
	participants ParticipantSource
	queue        QueueWriter
}

// NewFanout creates a Fanout.
func NewFanout(participants ParticipantSource, queue QueueWriter) *Fanout {
	return &Fanout{participants: participants, queue: queue}
}

// Recipients returns confirmed volunteers and organization members of the event, without the author.
func (f *Fanout) Recipients(ctx context.Context, event *models.Event, authorID uuid.UUID) ([]uuid.UUID, error) {
	volunteers, err := f.participants.ConfirmedVolunteerIDs(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list confirmed volunteers: %w", err)
	}
	var members []uuid.UUID
	if event.OrganizationID != nil {
		members, err = f.participants.OrganizationMemberIDs(ctx, *event.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("list organization members: %w", err)
		}
	}
	seen := map[uuid.UUID]struct{}{authorID: {}}
	out := make([]uuid.UUID, 0, len(volunteers)+len(members))
	for _, id := range append(volunteers, members...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// EnqueueMessage records messageID in each recipient's pending entry. Returns the entries touched.
func (f *Fanout) EnqueueMessage(ctx context.Context, event *models.Event, authorID, messageID uuid.UUID) (int, error) {
	recipients, err := f.Recipients(ctx, event, authorID)
	if err != nil {
		return 0, err
	}
	return f.queue.Upsert(ctx, event.ID, messageID, recipients)
}
