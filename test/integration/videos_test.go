package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipvault/video-service/internal/config"
	"github.com/clipvault/video-service/internal/handlers"
	sharedMiddleware "github.com/clipvault/video-service/internal/middleware"
	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/repositories"
	"github.com/clipvault/video-service/internal/services"
	"github.com/clipvault/video-service/internal/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSigningSecret = "integration-secret"

// testEnv is one running instance of the service backed by local blobs
type testEnv struct {
	server     *httptest.Server
	stagingDir string
	blobDir    string
}

// setupTestServer starts the full router with local blob storage and the given metadata store
func setupTestServer(t *testing.T, repo services.VideoRepository) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	env := &testEnv{
		stagingDir: filepath.Join(t.TempDir(), "tempUploads"),
		blobDir:    t.TempDir(),
	}

	var router chi.Router
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(env.server.Close)

	staging, err := storage.NewStagingArea(env.stagingDir)
	require.NoError(t, err)
	blobs, err := storage.NewLocalBlobStore(env.blobDir, env.server.URL, testSigningSecret)
	require.NoError(t, err)

	uploadService := services.NewUploadService(staging, blobs, repo, logger, services.DefaultReferenceTTL)
	listingService := services.NewListingService(repo, 2)

	r := chi.NewRouter()
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(sharedMiddleware.RecoveryMiddleware(logger))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(10 * 1024 * 1024))
	r.Get("/health", handlers.NewHealthHandler(logger).Health)
	handlers.NewMediaHandler(blobs, logger).RegisterRoutes(r)
	r.Route("/api", func(r chi.Router) {
		handlers.NewVideoHandler(uploadService, listingService, logger).RegisterRoutes(r)
	})
	router = r

	return env
}

// uploadVideo posts a multipart upload; an empty fileName sends no file part
func uploadVideo(t *testing.T, env *testEnv, fileName string, content []byte, fields map[string]string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("video", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	resp, err := http.Post(env.server.URL+"/api/videos", writer.FormDataContentType(), body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func listVideos(t *testing.T, env *testEnv) []models.Video {
	t.Helper()

	resp, err := http.Get(env.server.URL + "/api/videos")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var videos []models.Video
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&videos))
	return videos
}

func assertStagingEmpty(t *testing.T, env *testEnv) {
	t.Helper()
	entries, err := os.ReadDir(env.stagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging area must be empty after every request")
}

// runUploadListDownload is the end-to-end scenario shared by every metadata backend
func runUploadListDownload(t *testing.T, env *testEnv) {
	content := []byte("0123456789")

	resp := uploadVideo(t, env, "a b.mp4", content, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created models.Video
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, strings.HasSuffix(created.ID, "a_b.mp4"))
	assert.Equal(t, models.DefaultTitle, created.Title)
	assert.Equal(t, models.VisibilityPublic, created.Visibility)
	assert.Equal(t, models.AnonymousUploader, created.UploaderName)
	assert.Equal(t, []string{}, created.Tags)
	assert.Equal(t, int64(len(content)), created.Size)
	assertStagingEmpty(t, env)

	videos := listVideos(t, env)
	require.NotEmpty(t, videos)
	assert.Equal(t, created.ID, videos[0].ID)

	download, err := http.Get(created.URL)
	require.NoError(t, err)
	defer download.Body.Close()
	require.Equal(t, http.StatusOK, download.StatusCode)
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestIntegration_UploadListDownload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	env := setupTestServer(t, repositories.NewMemoryVideoRepository())
	runUploadListDownload(t, env)
}

func TestIntegration_ListingOrderAndVisibility(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	env := setupTestServer(t, repositories.NewMemoryVideoRepository())

	var publicIDs []string
	for i, visibility := range []string{"public", "private", "public", "unlisted", "public"} {
		resp := uploadVideo(t, env, fmt.Sprintf("clip %d.mp4", i), []byte("data"), map[string]string{
			"title":      fmt.Sprintf("clip %d", i),
			"visibility": visibility,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var created models.Video
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		if visibility == models.VisibilityPublic {
			publicIDs = append([]string{created.ID}, publicIDs...)
		}
		// distinct millisecond timestamps
		time.Sleep(2 * time.Millisecond)
	}

	videos := listVideos(t, env)

	ids := make([]string, 0, len(videos))
	for _, video := range videos {
		assert.Equal(t, models.VisibilityPublic, video.Visibility)
		ids = append(ids, video.ID)
	}
	assert.Equal(t, publicIDs, ids)
	assertStagingEmpty(t, env)
}

func TestIntegration_MissingFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	env := setupTestServer(t, repositories.NewMemoryVideoRepository())

	resp := uploadVideo(t, env, "", nil, map[string]string{"title": "no file"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Video file missing.", body["error"])
	assert.Empty(t, listVideos(t, env))

	blobs, err := os.ReadDir(env.blobDir)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestIntegration_ForgedReferenceRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	env := setupTestServer(t, repositories.NewMemoryVideoRepository())
	resp := uploadVideo(t, env, "clip.mp4", []byte("0123456789"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created models.Video
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	forged := created.URL[:strings.Index(created.URL, "token=")] + "token=forged"
	download, err := http.Get(forged)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, http.StatusForbidden, download.StatusCode)
}

// openTestDB connects to the MySQL test database, skipping the test when none is configured
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg, err := config.LoadTestConfig()
	require.NoError(t, err)
	dsn := cfg.DSN()
	if dsn == "" {
		t.Skip("TEST_DB_* not set, skipping MySQL integration test")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("MySQL test database unreachable: %v", err)
	}

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_create_videos_table.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM videos")
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM videos") })

	return db
}

func TestIntegration_MySQL_UploadListDownload(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	db := openTestDB(t)
	env := setupTestServer(t, repositories.NewMySQLVideoRepository(db))
	runUploadListDownload(t, env)
}
