package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
)

// AccessStore answers the guard's questions. *events.Repository implements it.
type AccessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IsOrganizationMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
	HasConfirmedSignup(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// Access is a granted decision for one caller on one event.
type Access struct {
	Event *models.Event
	// OrgMember is true when the caller belongs to the event's organization.
	OrgMember bool
}

// Kind returns the kind a post is stored with: announcements are kept only for organization members.
func (a *Access) Kind(requested models.MessageKind) models.MessageKind {
	if requested == models.KindAnnouncement && a.OrgMember {
		return models.KindAnnouncement
	}
	return models.KindMessage
}

// Guard decides chat read/post access. Decisions read current state on every call and are never cached,
// so withdrawing a signup revokes access on the next request.
type Guard struct {
	store AccessStore
}

// NewGuard creates a chat access guard.
func NewGuard(store AccessStore) *Guard {
	return &Guard{store: store}
}

// Check returns the caller's access to the event's chat, NotFound for a missing event,
// or Forbidden when the caller is neither an organization member nor a confirmed volunteer.
func (g *Guard) Check(ctx context.Context, eventID, userID uuid.UUID) (*Access, error) {
	event, err := g.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.OrganizationID != nil {
		member, err := g.store.IsOrganizationMember(ctx, *event.OrganizationID, userID)
		if err != nil {
			return nil, fmt.Errorf("check organization membership: %w", err)
		}
		if member {
			return &Access{Event: event, OrgMember: true}, nil
		}
	}

	confirmed, err := g.store.HasConfirmedSignup(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("check signup: %w", err)
	}
	if !confirmed {
		return nil, apperrors.Forbidden("you must be an organizer or a confirmed volunteer to use this chat")
	}
	return &Access{Event: event}, nil
}
