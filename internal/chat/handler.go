package chat

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/response"
)

// Handler serves GET/POST /events/:id/chat.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// PostRequest is the body for POST /events/:id/chat.
type PostRequest struct {
	Body string `json:"body"`
	Kind string `json:"kind"`
}

// List handles GET /events/:id/chat?cursor=&limit=.
func (h *Handler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	q, err := ParsePageQuery(c.Query("cursor"), c.Query("limit"))
	if err != nil {
		response.Error(c, err, "invalid pagination")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	page, err := h.svc.Read(c.Request.Context(), eventID, userID, q)
	if err != nil {
		h.logIfInternal("read chat failed", err, eventID)
		response.Error(c, err, "failed to load chat")
		return
	}
	response.OK(c, page)
}

// Post handles POST /events/:id/chat.
func (h *Handler) Post(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body PostRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	msg, err := h.svc.Post(c.Request.Context(), eventID, userID, body.Body, body.Kind)
	if err != nil {
		h.logIfInternal("post chat message failed", err, eventID)
		response.Error(c, err, "failed to post message")
		return
	}
	response.Created(c, msg)
}

func (h *Handler) logIfInternal(msg string, err error, eventID uuid.UUID) {
	var ae *apperrors.Error
	if errors.As(err, &ae) && !errors.Is(err, apperrors.ErrInternal) {
		return
	}
	h.logger.Error(msg, zap.String("event_id", eventID.String()), zap.Error(err))
}
