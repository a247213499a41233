package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/response"
)

// PreferenceStore reads and saves preferences. *PreferencesRepository implements it.
type PreferenceStore interface {
	PreferenceReader
	Save(ctx context.Context, p *models.NotificationPreference) error
}

// PreferencesHandler serves /me/notification-preferences.
type PreferencesHandler struct {
	store  PreferenceStore
	logger *zap.Logger
}

// NewPreferencesHandler creates a preferences handler.
func NewPreferencesHandler(store PreferenceStore, logger *zap.Logger) *PreferencesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferencesHandler{store: store, logger: logger}
}

// PreferencesRequest is the body for PUT /me/notification-preferences. Omitted fields keep their value.
type PreferencesRequest struct {
	EmailUpdates *bool `json:"email_updates"`
	WeeklyDigest *bool `json:"weekly_digest"`
}

// Get handles GET /me/notification-preferences.
func (h *PreferencesHandler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	p, err := h.store.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load preferences failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load preferences")
		return
	}
	response.OK(c, p)
}

// Update handles PUT /me/notification-preferences.
func (h *PreferencesHandler) Update(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body PreferencesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	p, err := h.store.Get(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load preferences failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to load preferences")
		return
	}
	if body.EmailUpdates != nil {
		p.EmailUpdates = *body.EmailUpdates
	}
	if body.WeeklyDigest != nil {
		p.WeeklyDigest = *body.WeeklyDigest
	}
	if err := h.store.Save(c.Request.Context(), &p); err != nil {
		h.logger.Error("save preferences failed", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "failed to save preferences")
		return
	}
	response.OK(c, p)
}

// CronHandler exposes the sweeps to an external scheduler. Mount behind middleware.CronSecret.
type CronHandler struct {
	messages  Runner
	reminders Runner
	digest    Runner
	logger    *zap.Logger
}

// NewCronHandler creates a cron handler.
func NewCronHandler(messages, reminders, digest Runner, logger *zap.Logger) *CronHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronHandler{messages: messages, reminders: reminders, digest: digest, logger: logger}
}

// MessageNotifications handles GET /cron/message-notifications.
func (h *CronHandler) MessageNotifications(c *gin.Context) { h.run(c, SweepMessages, h.messages) }

// RatingReminders handles GET /cron/rating-reminders.
func (h *CronHandler) RatingReminders(c *gin.Context) { h.run(c, SweepReminders, h.reminders) }

// WeeklyDigest handles GET /cron/weekly-digest.
func (h *CronHandler) WeeklyDigest(c *gin.Context) { h.run(c, SweepDigest, h.digest) }

func (h *CronHandler) run(c *gin.Context, name string, r Runner) {
	sum, err := r.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
		response.Internal(c, "sweep failed")
		return
	}
	response.OK(c, sum)
}
