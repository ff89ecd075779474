package repositories

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/storeerr"
)

// memoryVideoRepository keeps video documents in process memory.
// It is meant for local development and tests.
type memoryVideoRepository struct {
	mu     sync.RWMutex
	videos map[string]models.Video
}

// NewMemoryVideoRepository creates an empty in-memory video repository
func NewMemoryVideoRepository() *memoryVideoRepository {
	return &memoryVideoRepository{
		videos: make(map[string]models.Video),
	}
}

// Create stores a copy of video, failing with storeerr.ErrDuplicateKey if the id exists
func (r *memoryVideoRepository) Create(ctx context.Context, video *models.Video) error {
	if err := ctx.Err(); err != nil {
		return storeerr.Transient("create video", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[video.ID]; ok {
		return storeerr.DuplicateKey(video.ID, errors.New("document already exists"))
	}

	stored := *video
	stored.Tags = slices.Clone(video.Tags)
	r.videos[video.ID] = stored
	return nil
}

// QueryPublicByRecency returns up to pageSize public videos, newest first, after cursor
func (r *memoryVideoRepository) QueryPublicByRecency(ctx context.Context, pageSize int, cursor string) (*models.VideoPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Transient("query videos", err)
	}

	var position *recencyCursor
	if cursor != "" {
		c, err := decodeCursor(cursor)
		if err != nil {
			return nil, storeerr.Fatal("query videos", err)
		}
		position = c
	}

	r.mu.RLock()
	public := make([]models.Video, 0, len(r.videos))
	for _, v := range r.videos {
		if v.Visibility == models.VisibilityPublic && (position == nil || position.after(v)) {
			v.Tags = slices.Clone(v.Tags)
			public = append(public, v)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(public, func(a, b models.Video) int {
		if c := strings.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	page := &models.VideoPage{Items: public}
	if pageSize > 0 && len(public) > pageSize {
		page.Items = public[:pageSize]
		page.NextCursor = encodeCursor(public[pageSize-1])
	}
	return page, nil
}
