package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/response"
)

// ContextEvent is the context key for the *models.Event loaded by RequireEventOrgAccess.
const ContextEvent = "event"

// OrgAccessStore is what RequireEventOrgAccess reads. *Repository implements it.
type OrgAccessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IsOrganizationMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// RequireEventOrgAccess allows only members of the event's organization. Call after JWT.
// An event without an organization has no organizer side, so nobody passes.
func RequireEventOrgAccess(store OrgAccessStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := store.GetByID(c.Request.Context(), eventID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				response.NotFound(c, "event not found")
			} else {
				response.Internal(c, "failed to load event")
			}
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		if e.OrganizationID == nil {
			response.Forbidden(c, "not authorized for this event")
			c.Abort()
			return
		}
		ok, err := store.IsOrganizationMember(c.Request.Context(), *e.OrganizationID, userID)
		if err != nil {
			response.Internal(c, "failed to check membership")
			c.Abort()
			return
		}
		if !ok {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// EventFromContext returns the event set by RequireEventOrgAccess.
func EventFromContext(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}
