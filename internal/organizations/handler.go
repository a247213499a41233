package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/response"
	"github.com/campusreach/backend/pkg/storage"
	"github.com/campusreach/backend/pkg/utils"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the persistence the handler needs. *Repository implements it.
type Store interface {
	CreateWithOwner(ctx context.Context, org *models.Organization, owner *models.OrganizationMember) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	SetLogoKey(ctx context.Context, id uuid.UUID, key string) error
	AddMember(ctx context.Context, m *models.OrganizationMember) error
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*models.OrganizationMember, error)
	UpdateMemberProfile(ctx context.Context, orgID, userID uuid.UUID, fullName string) (*models.OrganizationMember, error)
	ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*models.OrganizationMember, error)
}

// UserLookup resolves accounts by email when adding members.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// UploadPresigner issues direct-upload URLs. *storage.S3 implements it.
type UploadPresigner interface {
	PresignMediaUpload(ctx context.Context, key, contentType string) (string, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store   Store
	users   UserLookup
	presign UploadPresigner
	logger  *zap.Logger
}

// NewHandler creates an organizations handler. presign may be nil when S3 is not configured.
func NewHandler(store Store, users UserLookup, presign UploadPresigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, users: users, presign: presign, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
	FullName    string `json:"full_name"` // creator's display name inside the organization
}

// AddMemberRequest is the body for POST /organizations/:id/members.
type AddMemberRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// UpdateMemberProfileRequest is the body for PUT /organizations/:id/members/me.
type UpdateMemberProfileRequest struct {
	FullName string `json:"full_name" binding:"required"`
}

// UploadURLRequest is the body for logo and avatar upload URL requests.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// UploadURLResponse carries the pre-signed PUT URL and the key it will write.
type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}

// CreateOrganization handles POST /organizations. Creates org and adds current user as owner.
func (h *Handler) CreateOrganization(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	email := c.GetString(middleware.ContextUserEmail)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug, Description: strings.TrimSpace(body.Description)}
	owner := &models.OrganizationMember{UserID: userID, Email: email, FullName: strings.TrimSpace(body.FullName)}
	if err := h.store.CreateWithOwner(c.Request.Context(), org, owner); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			h.logger.Error("create organization failed", zap.Error(err))
		}
		response.Error(c, err, "failed to create organization")
		return
	}
	h.logger.Info("organization created", zap.String("organization_id", org.ID.String()), zap.String("owner_id", userID.String()))
	response.Created(c, org)
}

// ListMyOrganizations handles GET /organizations. Returns orgs the current user is a member of.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.store.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// AddMember handles POST /organizations/:id/members. Owners and managers add an organization account by email.
func (h *Handler) AddMember(c *gin.Context) {
	orgID, caller, ok := h.requireMember(c)
	if !ok {
		return
	}
	if !caller.CanManage() {
		response.Forbidden(c, "only owners and managers can add members")
		return
	}
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email required")
		return
	}
	role := body.Role
	if role == "" {
		role = models.OrgRoleMember
	}
	if role != models.OrgRoleMember && role != models.OrgRoleManager {
		response.BadRequest(c, "role must be member or manager")
		return
	}
	user, err := h.users.GetByEmail(c.Request.Context(), utils.NormalizeEmail(body.Email))
	if err != nil {
		response.Error(c, err, "failed to look up user")
		return
	}
	if user.AccountType != models.AccountOrganization {
		response.BadRequest(c, "only organization accounts can be added as members")
		return
	}
	member := &models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         user.ID,
		Email:          user.Email,
		FullName:       strings.TrimSpace(body.FullName),
		Role:           role,
	}
	if err := h.store.AddMember(c.Request.Context(), member); err != nil {
		h.logger.Error("add member failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to add member")
		return
	}
	response.Created(c, member)
}

// ListMembers handles GET /organizations/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, _, ok := h.requireMember(c)
	if !ok {
		return
	}
	members, err := h.store.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// UpdateMyProfile handles PUT /organizations/:id/members/me.
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	orgID, caller, ok := h.requireMember(c)
	if !ok {
		return
	}
	var body UpdateMemberProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.FullName) == "" {
		response.BadRequest(c, "full_name required")
		return
	}
	m, err := h.store.UpdateMemberProfile(c.Request.Context(), orgID, caller.UserID, strings.TrimSpace(body.FullName))
	if err != nil {
		response.Error(c, err, "failed to update profile")
		return
	}
	response.OK(c, m)
}

// LogoUploadURL handles POST /organizations/:id/logo-upload-url.
func (h *Handler) LogoUploadURL(c *gin.Context) {
	orgID, caller, ok := h.requireMember(c)
	if !ok {
		return
	}
	if !caller.CanManage() {
		response.Forbidden(c, "only owners and managers can change the logo")
		return
	}
	if h.presign == nil {
		response.ServiceUnavailable(c, "file uploads are not configured")
		return
	}
	var body UploadURLRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if !storage.ValidateImageType(body.ContentType, body.Filename) {
		response.BadRequest(c, "logo must be a jpeg, png, webp or gif image")
		return
	}
	contentType := body.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(body.Filename)
	}
	key := storage.LogoKey(orgID.String(), body.Filename, time.Now())
	url, err := h.presign.PresignMediaUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign logo upload failed", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	if err := h.store.SetLogoKey(c.Request.Context(), orgID, key); err != nil {
		response.Error(c, err, "failed to save logo")
		return
	}
	response.OK(c, UploadURLResponse{UploadURL: url, Key: key})
}

// requireMember parses :id and loads the caller's membership, writing the error response on failure.
func (h *Handler) requireMember(c *gin.Context) (uuid.UUID, *models.OrganizationMember, bool) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	member, err := h.store.GetMember(c.Request.Context(), orgID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.Forbidden(c, "not authorized for this organization")
			return uuid.Nil, nil, false
		}
		h.logger.Error("membership lookup failed", zap.Error(err))
		response.Internal(c, "failed to check membership")
		return uuid.Nil, nil, false
	}
	return orgID, member, true
}
