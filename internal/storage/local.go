package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipvault/video-service/internal/storeerr"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidReference is returned when a read reference token does not grant access to a key
var ErrInvalidReference = errors.New("invalid read reference")

// readScope is the only scope a local read reference carries
const readScope = "read"

// readClaims are the claims of a local read reference token
type readClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// LocalBlobStore keeps blobs in a local directory and hands out signed,
// expiring download URLs served by the media route
type LocalBlobStore struct {
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewLocalBlobStore creates basePath if needed.
// baseURL is the externally reachable origin of this service, secret signs read references.
func NewLocalBlobStore(basePath, baseURL, secret string) (*LocalBlobStore, error) {
	if basePath == "" {
		return nil, errors.New("media base path is required")
	}
	if secret == "" {
		return nil, errors.New("media signing secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &LocalBlobStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   []byte(secret),
		now:      time.Now,
	}, nil
}

// blobPath maps key to a file directly inside basePath.
// Keys are flat, anything that could escape the directory is rejected.
func (s *LocalBlobStore) blobPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.basePath, key), nil
}

// Put copies the file at localPath into the store under key.
// The content becomes visible only once fully written.
func (s *LocalBlobStore) Put(ctx context.Context, key, localPath, contentType string) error {
	dst, err := s.blobPath(key)
	if err != nil {
		return storeerr.Fatal("put blob", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return storeerr.Fatal("put blob", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.basePath, ".partial-*")
	if err != nil {
		return storeerr.Transient("put blob", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return storeerr.Transient("put blob", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storeerr.Transient("put blob", err)
	}
	if err := tmp.Close(); err != nil {
		return storeerr.Transient("put blob", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return storeerr.Transient("put blob", err)
	}
	return nil
}

// GenerateReadReference returns {baseURL}/media/{key}?token=... valid for ttl
func (s *LocalBlobStore) GenerateReadReference(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := s.blobPath(key)
	if err != nil {
		return "", storeerr.Fatal("generate read reference", err)
	}
	if _, err := os.Stat(p); err != nil {
		return "", storeerr.Fatal("generate read reference", err)
	}

	now := s.now()
	claims := readClaims{
		Scope: readScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", storeerr.Fatal("generate read reference", err)
	}

	return fmt.Sprintf("%s/media/%s?token=%s", s.baseURL, url.PathEscape(key), url.QueryEscape(token)), nil
}

// VerifyReadReference checks that token is an unexpired read reference for key
func (s *LocalBlobStore) VerifyReadReference(key, token string) error {
	claims := &readClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(key),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if claims.Scope != readScope {
		return fmt.Errorf("%w: unexpected scope %q", ErrInvalidReference, claims.Scope)
	}
	return nil
}

// Open opens the blob stored under key for reading
func (s *LocalBlobStore) Open(key string) (*os.File, error) {
	p, err := s.blobPath(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	}
	return os.Open(p)
}

// Delete removes the blob stored under key. A missing blob is not an error.
func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	p, err := s.blobPath(key)
	if err != nil {
		return storeerr.Fatal("delete blob", err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storeerr.Transient("delete blob", err)
	}
	return nil
}
