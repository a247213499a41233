// Package worker drains the export job queue.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreach/backend/internal/exports"
	"github.com/campusreach/backend/internal/models"
	"github.com/campusreach/backend/pkg/apperrors"
	"github.com/campusreach/backend/pkg/queue"
	"github.com/campusreach/backend/pkg/storage"
)

// DequeueTimeout bounds each blocking pop so shutdown is noticed.
const DequeueTimeout = 5 * time.Second

// JobQueue is the Redis side. *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// JobStore tracks export_jobs rows. *exports.Repository implements it.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, key string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// DataSource loads the rows of an export. *exports.Repository implements it.
type DataSource interface {
	Load(ctx context.Context, job *models.ExportJob) (*exports.Table, error)
}

// Uploader stores the encoded file. *storage.S3 implements it.
type Uploader interface {
	UploadExport(ctx context.Context, key, contentType string, body io.Reader) error
}

// ExportProcessor renders export jobs and uploads them to S3.
type ExportProcessor struct {
	jobs    JobStore
	data    DataSource
	upload  Uploader
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewExportProcessor creates an export processor.
func NewExportProcessor(jobs JobStore, data DataSource, upload Uploader, q JobQueue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{jobs: jobs, data: data, upload: upload, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.DecodeExport()
	if err != nil {
		return err
	}
	exp, err := p.jobs.GetByID(ctx, payload.ExportJobID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", payload.ExportJobID, err)
	}
	if exp.Status == models.ExportStatusCompleted {
		p.logger.Info("export already completed", zap.String("export_id", exp.ID.String()))
		return nil
	}
	if err := p.jobs.MarkProcessing(ctx, exp.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	table, err := p.data.Load(ctx, exp)
	if err != nil {
		return fmt.Errorf("load export rows: %w", err)
	}
	var buf bytes.Buffer
	if err := exports.Encode(&buf, exp.Format, table); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	key := storage.ExportKey(exp.OrganizationID.String(), exp.ID.String(), exp.Format)
	if err := p.upload.UploadExport(ctx, key, exports.ContentType(exp.Format), &buf); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.jobs.MarkCompleted(ctx, exp.ID, key); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	p.logger.Info("export completed",
		zap.String("export_id", exp.ID.String()),
		zap.String("kind", exp.Kind),
		zap.Int("rows", len(table.Rows)),
		zap.String("s3_key", key))
	return nil
}

// Handle processes one job and schedules a retry on failure. The export row is marked failed
// on the last attempt. A job whose export row is gone is dropped.
func (p *ExportProcessor) Handle(ctx context.Context, job *queue.Job) error {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return nil
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	final := job.Attempt+1 >= queue.MaxRetries
	if final {
		if payload, dErr := job.DecodeExport(); dErr == nil {
			if mErr := p.jobs.MarkFailed(ctx, payload.ExportJobID, err.Error()); mErr != nil {
				p.logger.Error("mark export failed", zap.Error(mErr))
			}
		}
	}
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	return err
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Handle(ctx, job); err != nil {
			p.sleep(ctx)
		}
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
