package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/clipvault/video-service/internal/metrics"
	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/storage"
	"go.uber.org/zap"
)

// DefaultReferenceTTL is the lifetime of a generated read reference
const DefaultReferenceTTL = 365 * 24 * time.Hour

// compensationTimeout bounds the blob delete attempted after a failed upload
const compensationTimeout = 30 * time.Second

// StagingArea defines the interface for local staging of inbound files
type StagingArea interface {
	// Stage copies r into a new uniquely named local file
	Stage(ctx context.Context, r io.Reader, originalName string) (*storage.StagedFile, error)
	// Release removes the staged file; releasing nil is a no-op
	Release(file *storage.StagedFile) error
}

// BlobStore defines the interface for blob storage operations
type BlobStore interface {
	// Put uploads the file at localPath under key
	Put(ctx context.Context, key, localPath, contentType string) error
	// GenerateReadReference returns a read-only URL for key that expires no later than ttl from now
	GenerateReadReference(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes the blob under key; a missing blob is not an error
	Delete(ctx context.Context, key string) error
}

// VideoRepository defines the interface for video metadata access
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	QueryPublicByRecency(ctx context.Context, pageSize int, cursor string) (*models.VideoPage, error)
}

// UploadInput is one multipart upload: the file part plus optional text fields.
// File is nil when the request carried no file.
type UploadInput struct {
	File        io.Reader
	Filename    string
	ContentType string
	Title       string
	Description string
	Tag         string
	Visibility  string
}

// UploadService moves an upload from the request to durable storage and records its metadata
type UploadService struct {
	staging      StagingArea
	blobs        BlobStore
	videos       VideoRepository
	logger       *zap.Logger
	referenceTTL time.Duration
	now          func() time.Time
}

// NewUploadService creates a new upload service. A non-positive referenceTTL uses DefaultReferenceTTL.
func NewUploadService(staging StagingArea, blobs BlobStore, videos VideoRepository, logger *zap.Logger, referenceTTL time.Duration) *UploadService {
	if referenceTTL <= 0 {
		referenceTTL = DefaultReferenceTTL
	}
	return &UploadService{
		staging:      staging,
		blobs:        blobs,
		videos:       videos,
		logger:       logger,
		referenceTTL: referenceTTL,
		now:          time.Now,
	}
}

// Upload stages the file, writes it to the blob store, generates its read reference
// and persists the metadata record, strictly in that order.
//
// The staged file is released on every exit path. A failure after the blob write
// leaves an orphaned blob; it is logged as such and a compensating delete is attempted.
// No step is retried internally: the caller gets one *UploadError (or ErrMissingFile).
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*models.Video, error) {
	if in.File == nil {
		metrics.RecordUploadRejected()
		return nil, ErrMissingFile
	}

	staged, err := s.staging.Stage(ctx, in.File, in.Filename)
	if err != nil {
		return nil, s.fail(StageStaging, "", err)
	}
	defer func() {
		s.release(staged)
	}()
	size := staged.Size

	now := s.now()
	id := storage.GenerateVideoID(now, in.Filename)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.blobs.Put(ctx, id, staged.Path, contentType); err != nil {
		return nil, s.fail(StageBlobUpload, id, err)
	}

	url, err := s.blobs.GenerateReadReference(ctx, id, s.referenceTTL)
	if err != nil {
		s.compensate(ctx, StageReference, id, err)
		return nil, s.fail(StageReference, id, err)
	}

	// the blob is durable, the local copy is no longer needed
	s.release(staged)
	staged = nil

	video := &models.Video{
		ID:           id,
		Title:        defaultTitle(in.Title),
		Description:  in.Description,
		URL:          url,
		Tag:          in.Tag,
		Visibility:   defaultVisibility(in.Visibility),
		CreatedAt:    models.FormatCreatedAt(now),
		UploaderName: models.AnonymousUploader,
		Tags:         []string{},
		ContentType:  contentType,
		Size:         size,
	}

	if err := s.videos.Create(ctx, video); err != nil {
		s.compensate(ctx, StageMetadata, id, err)
		return nil, s.fail(StageMetadata, id, err)
	}

	metrics.RecordUploadSuccess(size)
	s.logger.Info("video uploaded",
		zap.String("id", video.ID),
		zap.Int64("size", size),
		zap.String("visibility", video.Visibility),
	)

	return video, nil
}

// release removes the staged file, logging instead of failing the upload
func (s *UploadService) release(staged *storage.StagedFile) {
	if staged == nil {
		return
	}
	if err := s.staging.Release(staged); err != nil {
		s.logger.Warn("failed to release staged file", zap.String("path", staged.Path), zap.Error(err))
	}
}

// fail records the failure and builds the consolidated upload error
func (s *UploadService) fail(stage UploadStage, id string, err error) error {
	class := errorClass(err)
	metrics.RecordUploadFailure(string(stage), class)

	uploadErr := &UploadError{Stage: stage, VideoID: id, Err: err}
	s.logger.Error("upload failed",
		zap.String("stage", string(stage)),
		zap.String("id", id),
		zap.String("class", class),
		zap.Bool("retryable", uploadErr.Retryable()),
		zap.Error(err),
	)
	return uploadErr
}

// compensate handles a blob that was written but will not get a metadata record.
// It logs the orphan distinctly from other failures and tries to delete the blob,
// even when the request context is already cancelled.
func (s *UploadService) compensate(ctx context.Context, stage UploadStage, id string, cause error) {
	msg := "orphaned blob: metadata write failed"
	if stage == StageReference {
		msg = "orphaned blob: read reference generation failed"
	}
	s.logger.Error(msg, zap.String("id", id), zap.String("stage", string(stage)), zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, id); err != nil {
		metrics.RecordOrphanedBlob(string(stage), "failed")
		s.logger.Error("compensating blob delete failed, blob left for garbage collection",
			zap.String("id", id),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return
	}
	metrics.RecordOrphanedBlob(string(stage), "deleted")
}

// defaultTitle returns title, or models.DefaultTitle when it is blank
func defaultTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return models.DefaultTitle
	}
	return title
}

// defaultVisibility returns visibility, or public when it is empty
func defaultVisibility(visibility string) string {
	if visibility == "" {
		return models.VisibilityPublic
	}
	return visibility
}
