package services

import (
	"errors"
	"fmt"

	"github.com/clipvault/video-service/internal/storeerr"
)

var (
	// ErrMissingFile is returned when an upload carries no file part
	ErrMissingFile = errors.New("video file missing")
	// ErrListingUnavailable is returned when the metadata store cannot serve the listing
	ErrListingUnavailable = errors.New("listing unavailable")
)

// UploadStage names the pipeline step an upload failed at
type UploadStage string

const (
	StageStaging    UploadStage = "staging"
	StageBlobUpload UploadStage = "blob_upload"
	StageReference  UploadStage = "reference"
	StageMetadata   UploadStage = "metadata"
)

// UploadError is the single consolidated failure of one upload
type UploadError struct {
	Stage UploadStage
	// VideoID is empty when the failure happened before a key was derived
	VideoID string
	Err     error
}

func (e *UploadError) Error() string {
	if e.VideoID == "" {
		return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("upload of %s failed at %s: %v", e.VideoID, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resubmitting the whole request may succeed.
// Every retry derives a new key, so a duplicate key is retryable too.
func (e *UploadError) Retryable() bool {
	return storeerr.IsRetryable(e.Err)
}

// OrphanedBlob reports whether the blob was written but no metadata references it
func (e *UploadError) OrphanedBlob() bool {
	return e.Stage == StageReference || e.Stage == StageMetadata
}

// errorClass labels err for metrics and logs
func errorClass(err error) string {
	switch {
	case errors.Is(err, storeerr.ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, storeerr.ErrTransient):
		return "transient"
	case errors.Is(err, storeerr.ErrFatal):
		return "fatal"
	default:
		return "unknown"
	}
}
