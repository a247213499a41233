package ratings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/events"
	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/response"
)

const maxCommentLength = 2000

// Store is the ratings persistence. *Repository implements it.
type Store interface {
	Create(ctx context.Context, rt *models.Rating) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.Rating, error)
}

// EventStore checks the event and the caller's attendance. *events.Repository implements it.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	HasConfirmedSignup(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// Handler handles rating endpoints.
type Handler struct {
	store  Store
	events EventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a ratings handler.
func NewHandler(store Store, events EventStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, events: events, logger: logger, now: time.Now}
}

// CreateRequest is the body for POST /events/:id/ratings.
type CreateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Create handles POST /events/:id/ratings. Only volunteers with a confirmed signup may rate, once, after the event ends.
func (h *Handler) Create(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if body.Score < models.MinRatingScore || body.Score > models.MaxRatingScore {
		response.BadRequest(c, "score must be between 1 and 5")
		return
	}
	comment := strings.TrimSpace(body.Comment)
	if len([]rune(comment)) > maxCommentLength {
		response.BadRequest(c, "comment too long")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	e, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		h.fail(c, err, "failed to load event")
		return
	}
	if !e.HasEnded(h.now()) {
		response.BadRequest(c, "event has not ended yet")
		return
	}
	ok, err := h.events.HasConfirmedSignup(ctx, eventID, userID)
	if err != nil {
		h.fail(c, err, "failed to check signup")
		return
	}
	if !ok {
		response.Forbidden(c, "only confirmed volunteers can rate this event")
		return
	}
	rt := &models.Rating{EventID: eventID, VolunteerID: userID, Score: body.Score, Comment: comment}
	if err := h.store.Create(ctx, rt); err != nil {
		h.fail(c, err, "failed to save rating")
		return
	}
	response.Created(c, rt)
}

// ListByEvent handles GET /events/:id/ratings. Call after events.RequireEventOrgAccess.
func (h *Handler) ListByEvent(c *gin.Context) {
	e := events.EventFromContext(c)
	list, err := h.store.ListByEvent(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err, "failed to load ratings")
		return
	}
	if list == nil {
		list = []*models.Rating{}
	}
	response.OK(c, list)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var ae *apperrors.Error
	if !errors.As(err, &ae) {
		h.logger.Error(fallback, zap.Error(err))
	}
	response.Error(c, err, fallback)
}
