package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/clipvault/video-service/internal/middleware"
	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to disk
const multipartMemory = 32 << 20

// Client-facing error messages. Details only go to the log.
const (
	msgVideoFileMissing  = "Video file missing."
	msgUploadFailed      = "Upload failed"
	msgCouldNotFetch     = "Could not fetch videos"
	msgInvalidMultipart  = "Invalid multipart request"
	videoFormField       = "video"
	defaultVideoMimeType = "application/octet-stream"
)

// UploadService defines the interface for the upload pipeline
type UploadService interface {
	// Method Upload stores the uploaded file and persists its metadata record.
	//
	// "in" parameter carries the file (nil when the request had none) and the optional text fields.
	//
	// Returns services.ErrMissingFile if no file was sent, or *services.UploadError if any store step failed.
	// On success the persisted record is returned.
	Upload(ctx context.Context, in services.UploadInput) (*models.Video, error)
}

// ListingService defines the interface for the public listing
type ListingService interface {
	// Method List retrieves all public videos, newest first.
	//
	// If the metadata store fails, services.ErrListingUnavailable is returned together with "nil" value.
	List(ctx context.Context) ([]models.Video, error)
}

// VideoHandler handles video-related HTTP requests
type VideoHandler struct {
	BaseHandler
	uploadService  UploadService
	listingService ListingService
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(uploadService UploadService, listingService ListingService, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		uploadService:  uploadService,
		listingService: listingService,
	}
}

// RegisterRoutes registers all video handler routes
func (h *VideoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/videos", func(r chi.Router) {
		r.Get("/", h.ListVideos)
		r.Post("/", h.UploadVideo)
	})
}

// ListVideos handles GET /videos
// @Summary List public videos
// @Description Returns every public video, newest first
// @Tags videos
// @Produce json
// @Success 200 {array} models.Video
// @Failure 500 {object} map[string]string "Could not fetch videos"
// @Router /videos [get]
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.listingService.List(r.Context())
	if err != nil {
		h.Logger.Error("failed to list videos", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, msgCouldNotFetch)
		return
	}

	h.RespondJSON(w, http.StatusOK, videos)
}

// UploadVideo handles POST /videos
// @Summary Upload a video
// @Description Uploads a video to blob storage and records its metadata
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "Video file"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param tag formData string false "Tag"
// @Param visibility formData string false "Visibility (default public)"
// @Success 200 {object} models.Video
// @Failure 400 {object} map[string]string "Video file missing."
// @Failure 413 {object} map[string]string "request body too large"
// @Failure 500 {object} map[string]string "Upload failed"
// @Router /videos [post]
func (h *VideoHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	in := services.UploadInput{}

	err := r.ParseMultipartForm(multipartMemory)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	switch {
	case err == nil:
	case errors.Is(err, http.ErrNotMultipart):
		// no multipart body at all means no file either
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.Logger.Info("upload rejected: body too large", zap.Int64("limit", maxBytesErr.Limit))
			h.RespondError(w, http.StatusRequestEntityTooLarge, middleware.RequestTooLargeMessage)
			return
		}
		h.Logger.Info("failed to parse multipart form", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, msgInvalidMultipart)
		return
	}

	file, header, err := r.FormFile(videoFormField)
	switch {
	case err == nil:
		defer file.Close()
		in.File = file
		in.Filename = header.Filename
		in.ContentType = header.Header.Get("Content-Type")
		if in.ContentType == "" {
			in.ContentType = defaultVideoMimeType
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.Logger.Error("failed to read video part", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, msgInvalidMultipart)
		return
	}

	in.Title = r.FormValue("title")
	in.Description = r.FormValue("description")
	in.Tag = r.FormValue("tag")
	in.Visibility = r.FormValue("visibility")

	video, err := h.uploadService.Upload(r.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrMissingFile) {
			h.RespondError(w, http.StatusBadRequest, msgVideoFileMissing)
			return
		}
		h.Logger.Error("failed to upload video", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	h.Logger.Info("saved video metadata", zap.String("id", video.ID))
	h.RespondJSON(w, http.StatusOK, video)
}
