package repositories

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clipvault/video-service/internal/models"
)

// ErrInvalidCursor is returned when a listing cursor cannot be decoded
var ErrInvalidCursor = errors.New("invalid listing cursor")

// recencyCursor points just past the last record of a page in (createdAt, id) descending order
type recencyCursor struct {
	CreatedAt string `json:"c"`
	ID        string `json:"i"`
}

// encodeCursor builds the opaque cursor that resumes after video
func encodeCursor(video models.Video) string {
	data, _ := json.Marshal(recencyCursor{CreatedAt: video.CreatedAt, ID: video.ID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses a cursor produced by encodeCursor
func decodeCursor(cursor string) (*recencyCursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	c := &recencyCursor{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if c.CreatedAt == "" || c.ID == "" {
		return nil, ErrInvalidCursor
	}
	return c, nil
}

// after reports whether video sorts after the cursor position in recency order
func (c *recencyCursor) after(video models.Video) bool {
	if video.CreatedAt != c.CreatedAt {
		return video.CreatedAt < c.CreatedAt
	}
	return video.ID < c.ID
}
