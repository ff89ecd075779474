package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/storeerr"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the repository treats specially
const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrTooManyConns     = 1040
	mysqlErrLockWaitTimeout  = 1205
	mysqlErrDeadlockDetected = 1213
)

const videoColumns = `id, title, description, url, tag, visibility, created_at, uploader_name, tags, content_type, size`

// mysqlVideoRepository implements video repository operations on MySQL
type mysqlVideoRepository struct {
	db *sql.DB
}

// NewMySQLVideoRepository creates a new MySQL video repository
func NewMySQLVideoRepository(db *sql.DB) *mysqlVideoRepository {
	return &mysqlVideoRepository{
		db: db,
	}
}

// Create inserts a new video record into the database
func (r *mysqlVideoRepository) Create(ctx context.Context, video *models.Video) error {
	createdAt, err := models.ParseCreatedAt(video.CreatedAt)
	if err != nil {
		return storeerr.Fatal("create video", fmt.Errorf("invalid createdAt: %w", err))
	}

	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return storeerr.Fatal("create video", err)
	}

	query := `
		INSERT INTO videos (` + videoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.URL,
		video.Tag,
		video.Visibility,
		createdAt,
		video.UploaderName,
		string(tagsJSON),
		video.ContentType,
		video.Size,
	)
	if err != nil {
		return classifyMySQLError("create video", video.ID, err)
	}

	return nil
}

// QueryPublicByRecency returns up to pageSize public videos ordered by created_at descending.
// Pagination is keyset based on (created_at, id), so concurrent inserts never shift pages.
func (r *mysqlVideoRepository) QueryPublicByRecency(ctx context.Context, pageSize int, cursor string) (*models.VideoPage, error) {
	if pageSize <= 0 {
		return nil, storeerr.Fatal("query videos", fmt.Errorf("invalid page size %d", pageSize))
	}

	query := `SELECT ` + videoColumns + ` FROM videos WHERE visibility = ?`
	args := []any{models.VisibilityPublic}

	if cursor != "" {
		position, err := decodeCursor(cursor)
		if err != nil {
			return nil, storeerr.Fatal("query videos", err)
		}
		createdAt, err := models.ParseCreatedAt(position.CreatedAt)
		if err != nil {
			return nil, storeerr.Fatal("query videos", fmt.Errorf("%w: %w", ErrInvalidCursor, err))
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, createdAt, createdAt, position.ID)
	}

	// one extra row tells whether another page exists
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyMySQLError("query videos", "", err)
	}
	defer rows.Close()

	videos := make([]models.Video, 0, pageSize)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, storeerr.Fatal("scan video", err)
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyMySQLError("query videos", "", err)
	}

	page := &models.VideoPage{Items: videos}
	if len(videos) > pageSize {
		page.Items = videos[:pageSize]
		page.NextCursor = encodeCursor(videos[pageSize-1])
	}
	return page, nil
}

// scanVideo reads one row selected with videoColumns
func scanVideo(rows *sql.Rows) (*models.Video, error) {
	var (
		video    models.Video
		created  sql.NullTime
		tagsJSON []byte
	)

	err := rows.Scan(
		&video.ID,
		&video.Title,
		&video.Description,
		&video.URL,
		&video.Tag,
		&video.Visibility,
		&created,
		&video.UploaderName,
		&tagsJSON,
		&video.ContentType,
		&video.Size,
	)
	if err != nil {
		return nil, err
	}

	if created.Valid {
		video.CreatedAt = models.FormatCreatedAt(created.Time)
	}

	video.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &video.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags for video %s: %w", video.ID, err)
		}
	}

	return &video, nil
}

// classifyMySQLError maps a driver error onto the store error classes
func classifyMySQLError(op, id string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDuplicateEntry:
			return storeerr.DuplicateKey(id, err)
		case mysqlErrTooManyConns, mysqlErrLockWaitTimeout, mysqlErrDeadlockDetected:
			return storeerr.Transient(op, err)
		default:
			return storeerr.Fatal(op, err)
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) || storeerr.IsNetwork(err) {
		return storeerr.Transient(op, err)
	}
	return storeerr.Fatal(op, err)
}
