package models

import "time"

// Video represents the metadata document of one uploaded video.
// ID addresses both the blob and this document.
type Video struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Tag          string   `json:"tag"`
	Visibility   string   `json:"visibility"`
	CreatedAt    string   `json:"createdAt"`
	UploaderName string   `json:"uploaderName"`
	Tags         []string `json:"tags"`
	ContentType  string   `json:"contentType,omitempty"`
	Size         int64    `json:"size,omitempty"`
}

// VideoPage is one page of a listing query.
// An empty NextCursor marks the last page.
type VideoPage struct {
	Items      []Video
	NextCursor string
}

const (
	// VisibilityPublic is the only visibility the listing recognizes
	VisibilityPublic = "public"
	// DefaultTitle is used when the upload carries no title
	DefaultTitle = "Untitled video"
	// AnonymousUploader is recorded until uploads are authenticated
	AnonymousUploader = "Anonymous"
)

// CreatedAtLayout is a fixed-width ISO-8601 layout, so createdAt strings sort
// lexically in the same order as the instants they encode.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// FormatCreatedAt formats t in UTC using CreatedAtLayout
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// ParseCreatedAt parses a createdAt value produced by FormatCreatedAt
func ParseCreatedAt(s string) (time.Time, error) {
	return time.Parse(CreatedAtLayout, s)
}
