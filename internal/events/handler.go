package events

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/response"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store is the persistence the handler needs. *Repository implements it.
type Store interface {
	OrgAccessStore
	Create(ctx context.Context, e *models.Event) error
	List(ctx context.Context, f ListFilter) ([]*models.Event, error)
	CreateSignup(ctx context.Context, eventID, volunteerID uuid.UUID, status string) (*models.EventSignup, error)
	DeleteSignup(ctx context.Context, eventID, volunteerID uuid.UUID) error
	UpdateSignupStatus(ctx context.Context, eventID, signupID uuid.UUID, status string) (*models.EventSignup, error)
	ListSignups(ctx context.Context, eventID uuid.UUID, status string) ([]*models.SignupWithVolunteer, error)
}

// Handler handles event and signup HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// CreateEventRequest is the body for POST /events.
type CreateEventRequest struct {
	OrganizationID string    `json:"organization_id" binding:"required,uuid"`
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	StartsAt       time.Time `json:"starts_at" binding:"required"`
	EndsAt         time.Time `json:"ends_at" binding:"required"`
}

// UpdateSignupRequest is the body for PATCH /events/:id/signups/:signupId.
type UpdateSignupRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create handles POST /events. The caller must belong to the organization.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" || len(title) > 200 {
		response.BadRequest(c, "title must be 1–200 characters")
		return
	}
	if !body.StartsAt.Before(body.EndsAt) {
		response.BadRequest(c, "starts_at must be before ends_at")
		return
	}
	orgID := uuid.MustParse(body.OrganizationID)
	ok, err := h.store.IsOrganizationMember(c.Request.Context(), orgID, userID)
	if err != nil {
		response.Internal(c, "failed to check membership")
		return
	}
	if !ok {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	e := &models.Event{
		OrganizationID: &orgID,
		Title:          title,
		Description:    strings.TrimSpace(body.Description),
		Location:       strings.TrimSpace(body.Location),
		StartsAt:       body.StartsAt.UTC(),
		EndsAt:         body.EndsAt.UTC(),
		CreatedBy:      userID,
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("organization_id", orgID.String()))
	response.Created(c, e)
}

// List handles GET /events?organization_id=&upcoming=true&limit=&offset=.
func (h *Handler) List(c *gin.Context) {
	var f ListFilter
	if s := c.Query("organization_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		f.OrganizationID = &id
	}
	if c.Query("upcoming") == "true" {
		now := h.now()
		f.UpcomingAfter = &now
	}
	limit, err := parseUint(c.Query("limit"), defaultListLimit)
	if err != nil {
		response.BadRequest(c, "invalid limit")
		return
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	f.Limit = limit
	if f.Offset, err = parseUint(c.Query("offset"), 0); err != nil {
		response.BadRequest(c, "invalid offset")
		return
	}
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	response.OK(c, e)
}

// Signup handles POST /events/:id/signup. Volunteers only; new signups are CONFIRMED.
func (h *Handler) Signup(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	if e.HasEnded(h.now()) {
		response.BadRequest(c, "event has already ended")
		return
	}
	s, err := h.store.CreateSignup(c.Request.Context(), eventID, userID, models.SignupConfirmed)
	if err != nil {
		response.Error(c, err, "failed to sign up")
		return
	}
	response.Created(c, s)
}

// Withdraw handles DELETE /events/:id/signup. Chat access ends with the signup.
func (h *Handler) Withdraw(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.store.DeleteSignup(c.Request.Context(), eventID, userID); err != nil {
		response.Error(c, err, "failed to withdraw")
		return
	}
	response.NoContent(c)
}

// ListSignups handles GET /events/:id/signups?status=. Call after RequireEventOrgAccess.
func (h *Handler) ListSignups(c *gin.Context) {
	e := EventFromContext(c)
	status := strings.ToUpper(c.Query("status"))
	if status != "" && !models.ValidSignupStatus(status) {
		response.BadRequest(c, "invalid status")
		return
	}
	list, err := h.store.ListSignups(c.Request.Context(), e.ID, status)
	if err != nil {
		h.logger.Error("list signups failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to list signups")
		return
	}
	response.OK(c, list)
}

// UpdateSignup handles PATCH /events/:id/signups/:signupId. Call after RequireEventOrgAccess.
func (h *Handler) UpdateSignup(c *gin.Context) {
	e := EventFromContext(c)
	signupID, err := uuid.Parse(c.Param("signupId"))
	if err != nil {
		response.BadRequest(c, "invalid signup id")
		return
	}
	var body UpdateSignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if !models.ValidSignupStatus(status) {
		response.BadRequest(c, "status must be CONFIRMED, PENDING or CANCELLED")
		return
	}
	s, err := h.store.UpdateSignupStatus(c.Request.Context(), e.ID, signupID, status)
	if err != nil {
		response.Error(c, err, "failed to update signup")
		return
	}
	response.OK(c, s)
}

func parseUint(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
