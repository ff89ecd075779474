package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// whitespaceRun matches ASCII and Unicode space separators, including NBSP and the BOM
var whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

// fallbackFilename names uploads whose original filename is empty or only a path
const fallbackFilename = "video"

// maxFilenameRunes bounds the filename part of a video ID; longer names keep their tail so the extension survives
const maxFilenameRunes = 200

// SanitizeFilename strips any client-side directory from name and replaces every
// run of whitespace with a single underscore
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = whitespaceRun.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "/" || name == ".." {
		return fallbackFilename
	}
	if runes := []rune(name); len(runes) > maxFilenameRunes {
		name = string(runes[len(runes)-maxFilenameRunes:])
	}
	return name
}

// GenerateVideoID builds the key shared by a blob and its metadata document:
// {epochMillis}-{uuid}-{sanitized filename}.
// The time prefix keeps keys roughly ordered, the UUID makes them unique even for
// identical filenames uploaded within the same millisecond.
func GenerateVideoID(now time.Time, filename string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString(), SanitizeFilename(filename))
}

// sizeWriter counts the bytes written through it
type sizeWriter struct {
	size int64
}

// Write implements io.Writer
func (sw *sizeWriter) Write(p []byte) (int, error) {
	sw.size += int64(len(p))
	return len(p), nil
}

// Size returns the total number of bytes written
func (sw *sizeWriter) Size() int64 {
	return sw.size
}

// contextReader stops reading once ctx is done, so an aborted request
// does not keep copying into the staging area
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
