package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/response"
)

// Lister reads the audit log. *Repository implements it.
type Lister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByEvent handles GET /events/:id/emails. Returns the notification emails sent about the event.
// Call after events.RequireEventOrgAccess so access is already validated.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.EventFromContext(c)
	logs, err := h.repo.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list email logs failed", zap.String("event_id", e.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []*models.EmailLog{}
	}
	response.OK(c, logs)
}
