package profiles

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/response"
	"github.com/campusreach/backend/pkg/storage"
)

// Store is the persistence the handler needs. *Repository implements it.
type Store interface {
	GetVolunteer(ctx context.Context, userID uuid.UUID) (*models.Volunteer, error)
	UpsertVolunteer(ctx context.Context, v *models.Volunteer) error
	SetAvatarKey(ctx context.Context, userID uuid.UUID, key string) error
}

// UploadPresigner issues direct-upload URLs. *storage.S3 implements it.
type UploadPresigner interface {
	PresignMediaUpload(ctx context.Context, key, contentType string) (string, error)
}

// Handler serves the caller's own profile endpoints.
type Handler struct {
	store     Store
	directory *Directory
	presign   UploadPresigner
	logger    *zap.Logger
}

// NewHandler creates a profiles handler. presign may be nil when S3 is not configured.
func NewHandler(store Store, directory *Directory, presign UploadPresigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, directory: directory, presign: presign, logger: logger}
}

// VolunteerRequest is the body for PUT /me/volunteer.
type VolunteerRequest struct {
	FullName string `json:"full_name" binding:"required"`
	School   string `json:"school"`
	Bio      string `json:"bio"`
}

// AvatarUploadRequest is the body for POST /me/avatar-upload-url.
type AvatarUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// GetVolunteer handles GET /me/volunteer.
func (h *Handler) GetVolunteer(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	v, err := h.store.GetVolunteer(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err, "failed to load profile")
		return
	}
	response.OK(c, v)
}

// UpdateVolunteer handles PUT /me/volunteer.
func (h *Handler) UpdateVolunteer(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body VolunteerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "full_name required")
		return
	}
	name := strings.TrimSpace(body.FullName)
	if name == "" || len(name) > 255 {
		response.BadRequest(c, "full_name must be 1–255 characters")
		return
	}
	if len(body.Bio) > 2000 {
		response.BadRequest(c, "bio must be at most 2000 characters")
		return
	}
	v := &models.Volunteer{
		UserID:   userID,
		FullName: name,
		Email:    c.GetString(middleware.ContextUserEmail),
		School:   strings.TrimSpace(body.School),
		Bio:      strings.TrimSpace(body.Bio),
	}
	if err := h.store.UpsertVolunteer(c.Request.Context(), v); err != nil {
		h.logger.Error("upsert volunteer failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to save profile")
		return
	}
	h.directory.Forget(userID)
	response.OK(c, v)
}

// AvatarUploadURL handles POST /me/avatar-upload-url. The key is recorded immediately; the client PUTs the file.
func (h *Handler) AvatarUploadURL(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if h.presign == nil {
		response.ServiceUnavailable(c, "file uploads are not configured")
		return
	}
	var body AvatarUploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if !storage.ValidateImageType(body.ContentType, body.Filename) {
		response.BadRequest(c, "avatar must be a jpeg, png, webp or gif image")
		return
	}
	contentType := body.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(body.Filename)
	}
	key := storage.AvatarKey(userID.String(), body.Filename, time.Now())
	url, err := h.presign.PresignMediaUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign avatar upload failed", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	if err := h.store.SetAvatarKey(c.Request.Context(), userID, key); err != nil {
		h.logger.Error("save avatar key failed", zap.Error(err))
		response.Internal(c, "failed to save avatar")
		return
	}
	h.directory.Forget(userID)
	response.OK(c, gin.H{"upload_url": url, "key": key, "max_bytes": storage.MaxImageSize})
}
