package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LocalMediaStore defines the interface for serving blobs kept on local disk
type LocalMediaStore interface {
	// Method VerifyReadReference checks that "token" grants read access to "key".
	VerifyReadReference(key, token string) error
	// Method Open opens the blob stored under "key" for use with http.ServeContent.
	Open(key string) (*os.File, error)
}

// MediaHandler serves locally stored videos behind signed read references
type MediaHandler struct {
	BaseHandler
	store LocalMediaStore
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(store LocalMediaStore, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		BaseHandler: BaseHandler{Logger: logger},
		store:       store,
	}
}

// RegisterRoutes registers all media handler routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/media/{key}", h.DownloadVideo)
}

// RegisterUploadsDir serves the files under dir at /uploads/
func RegisterUploadsDir(r chi.Router, dir string) {
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir))))
}

// DownloadVideo handles GET /media/{key}
// @Summary Download a locally stored video
// @Description Streams a video using the token of its read reference. Supports range requests.
// @Tags media
// @Produce application/octet-stream
// @Param key path string true "Video ID"
// @Param token query string true "Read reference token"
// @Param Range header string false "Range"
// @Success 200 "File content"
// @Success 206 "Partial file content"
// @Failure 403 {object} map[string]string "Invalid or expired reference"
// @Failure 404 {object} map[string]string "File not found"
// @Router /media/{key} [get]
func (h *MediaHandler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	// chi routes on RawPath when it is set, leaving params escaped
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			h.RespondError(w, http.StatusNotFound, "file not found")
			return
		}
		key = unescaped
	}

	if err := h.store.VerifyReadReference(key, r.URL.Query().Get("token")); err != nil {
		h.Logger.Info("rejected read reference", zap.String("key", key), zap.Error(err))
		h.RespondError(w, http.StatusForbidden, "invalid or expired reference")
		return
	}

	file, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.RespondError(w, http.StatusNotFound, "file not found")
			return
		}
		h.Logger.Error("failed to open file", zap.String("key", key), zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		h.Logger.Error("failed to get file info", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "failed to get file info")
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, key, fileInfo.ModTime(), file)
}
