package exports

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/middleware"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/queue"
	"github.com/campusreach/backend/pkg/response"
)

// JobStore persists export jobs. *Repository implements it.
type JobStore interface {
	Create(ctx context.Context, j *models.ExportJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExportJob, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// AccessStore checks membership and event ownership. *events.Repository implements it.
type AccessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IsOrganizationMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

// Enqueuer hands jobs to the worker. *queue.Queue implements it.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) error
}

// DownloadPresigner signs export downloads. *storage.S3 implements it.
type DownloadPresigner interface {
	PresignExportDownload(ctx context.Context, key string) (string, error)
}

// Handler handles export endpoints.
type Handler struct {
	jobs     JobStore
	access   AccessStore
	queue    Enqueuer
	download DownloadPresigner
	logger   *zap.Logger
}

// NewHandler creates an exports handler. queue and download may be nil when Redis or S3 is not configured.
func NewHandler(jobs JobStore, access AccessStore, q Enqueuer, download DownloadPresigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobs: jobs, access: access, queue: q, download: download, logger: logger}
}

// CreateRequest is the body for POST /organizations/:id/exports.
type CreateRequest struct {
	Kind    string `json:"kind" binding:"required"`
	Format  string `json:"format"`
	EventID string `json:"event_id"`
}

// StatusResponse is the body of GET /exports/:id.
type StatusResponse struct {
	*models.ExportJob
	DownloadURL string `json:"download_url,omitempty"`
}

// Create handles POST /organizations/:id/exports. Any organization member may request an export.
func (h *Handler) Create(c *gin.Context) {
	if h.queue == nil {
		response.ServiceUnavailable(c, "exports are not configured")
		return
	}
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "kind required")
		return
	}
	if body.Format == "" {
		body.Format = models.ExportFormatCSV
	}
	if !ValidKind(body.Kind) {
		response.BadRequest(c, "kind must be signups, chat or ratings")
		return
	}
	if !ValidFormat(body.Format) {
		response.BadRequest(c, "format must be csv or json")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()
	if !h.requireMember(c, orgID, userID) {
		return
	}
	job := &models.ExportJob{OrganizationID: orgID, RequestedBy: userID, Kind: body.Kind, Format: body.Format}
	if body.EventID != "" {
		eventID, err := uuid.Parse(body.EventID)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		e, err := h.access.GetByID(ctx, eventID)
		if err != nil {
			h.fail(c, err, "failed to load event")
			return
		}
		if e.OrganizationID == nil || *e.OrganizationID != orgID {
			response.BadRequest(c, "event does not belong to this organization")
			return
		}
		job.EventID = &eventID
	}

	if err := h.jobs.Create(ctx, job); err != nil {
		h.fail(c, err, "failed to create export")
		return
	}
	if err := h.queue.EnqueueExport(ctx, queue.ExportPayload{ExportJobID: job.ID, OrganizationID: orgID}); err != nil {
		h.logger.Error("enqueue export failed", zap.String("export_id", job.ID.String()), zap.Error(err))
		if mErr := h.jobs.MarkFailed(ctx, job.ID, "could not be queued"); mErr != nil {
			h.logger.Error("mark export failed", zap.Error(mErr))
		}
		response.ServiceUnavailable(c, "export queue unavailable")
		return
	}
	response.Accepted(c, job)
}

// Get handles GET /exports/:id. A completed export carries a short-lived download URL.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobs.GetByID(ctx, id)
	if err != nil {
		h.fail(c, err, "failed to load export")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !h.requireMember(c, job.OrganizationID, userID) {
		return
	}
	out := StatusResponse{ExportJob: job}
	if job.Status == models.ExportStatusCompleted && job.S3Key != "" && h.download != nil {
		url, err := h.download.PresignExportDownload(ctx, job.S3Key)
		if err != nil {
			h.logger.Error("presign export download failed", zap.String("export_id", job.ID.String()), zap.Error(err))
			response.Internal(c, "failed to sign download")
			return
		}
		out.DownloadURL = url
	}
	response.OK(c, out)
}

func (h *Handler) requireMember(c *gin.Context, orgID, userID uuid.UUID) bool {
	ok, err := h.access.IsOrganizationMember(c.Request.Context(), orgID, userID)
	if err != nil {
		h.fail(c, err, "failed to check membership")
		return false
	}
	if !ok {
		response.Forbidden(c, "not a member of this organization")
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var ae *apperrors.Error
	if !errors.As(err, &ae) {
		h.logger.Error(fallback, zap.Error(err))
	}
	response.Error(c, err, fallback)
}
