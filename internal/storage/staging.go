package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// StagedFile is an inbound upload held on local disk
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

// StagingArea holds inbound files on local disk between the request and the blob store.
// Every Stage call writes to its own unique file, so concurrent uploads never share a path.
type StagingArea struct {
	dir string
}

// NewStagingArea creates dir if needed and returns a staging area rooted there
func NewStagingArea(dir string) (*StagingArea, error) {
	if dir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &StagingArea{dir: dir}, nil
}

// Dir returns the staging directory
func (s *StagingArea) Dir() string {
	return s.dir
}

// Stage copies r into a new file in the staging area.
// On any failure, including ctx cancellation mid-copy, the partial file is removed.
func (s *StagingArea) Stage(ctx context.Context, r io.Reader, originalName string) (*StagedFile, error) {
	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	sw := &sizeWriter{}
	_, copyErr := io.Copy(f, io.TeeReader(&contextReader{ctx: ctx, r: r}, sw))
	closeErr := f.Close()

	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}

	return &StagedFile{
		Path:         f.Name(),
		OriginalName: originalName,
		Size:         sw.Size(),
	}, nil
}

// Release removes the staged file. Releasing nil or an already removed file is a no-op.
func (s *StagingArea) Release(file *StagedFile) error {
	if file == nil {
		return nil
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release staged file: %w", err)
	}
	return nil
}
