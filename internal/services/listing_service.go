package services

import (
	"context"
	"fmt"

	"github.com/clipvault/video-service/internal/metrics"
	"github.com/clipvault/video-service/internal/models"
)

// DefaultListingPageSize is the number of records requested per store page
const DefaultListingPageSize = 100

// ListingService serves the public video listing
type ListingService struct {
	videos   VideoRepository
	pageSize int
}

// NewListingService creates a new listing service. A non-positive pageSize uses DefaultListingPageSize.
func NewListingService(videos VideoRepository, pageSize int) *ListingService {
	if pageSize <= 0 {
		pageSize = DefaultListingPageSize
	}
	return &ListingService{
		videos:   videos,
		pageSize: pageSize,
	}
}

// List returns every public video, newest first, exactly as the store orders them.
// Any store failure is reported as ErrListingUnavailable.
func (s *ListingService) List(ctx context.Context) ([]models.Video, error) {
	videos := []models.Video{}
	cursor := ""

	for {
		page, err := s.videos.QueryPublicByRecency(ctx, s.pageSize, cursor)
		if err != nil {
			metrics.RecordListingFailure()
			return nil, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
		}

		videos = append(videos, page.Items...)

		if page.NextCursor == "" {
			return videos, nil
		}
		if page.NextCursor == cursor {
			metrics.RecordListingFailure()
			return nil, fmt.Errorf("%w: store returned the same cursor twice", ErrListingUnavailable)
		}
		cursor = page.NextCursor
	}
}
