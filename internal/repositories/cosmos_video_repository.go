package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/clipvault/video-service/internal/models"
	"github.com/clipvault/video-service/internal/storeerr"
)

// publicByRecencyQuery is served from the "public" partition only
const publicByRecencyQuery = "SELECT * FROM c WHERE c.visibility = @visibility ORDER BY c.createdAt DESC"

// cosmosVideoRepository stores video documents in a Cosmos DB container
// partitioned by /visibility
type cosmosVideoRepository struct {
	container *azcosmos.ContainerClient
}

// NewCosmosVideoRepository connects to the container with a Cosmos DB connection string
func NewCosmosVideoRepository(connectionString, database, container string) (*cosmosVideoRepository, error) {
	if connectionString == "" || database == "" || container == "" {
		return nil, errors.New("cosmos connection string, database and container are required")
	}

	client, err := azcosmos.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cosmos client: %w", err)
	}

	containerClient, err := client.NewContainer(database, container)
	if err != nil {
		return nil, fmt.Errorf("failed to open cosmos container: %w", err)
	}

	return &cosmosVideoRepository{container: containerClient}, nil
}

// Create inserts the video document; an existing id yields storeerr.ErrDuplicateKey
func (r *cosmosVideoRepository) Create(ctx context.Context, video *models.Video) error {
	doc := *video
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return storeerr.Fatal("create video", err)
	}

	pk := azcosmos.NewPartitionKeyString(video.Visibility)
	if _, err := r.container.CreateItem(ctx, pk, data, nil); err != nil {
		return classifyCosmosError("create video", video.ID, err)
	}
	return nil
}

// QueryPublicByRecency returns one page of public videos, newest first.
// The cursor is the Cosmos continuation token of the previous page.
func (r *cosmosVideoRepository) QueryPublicByRecency(ctx context.Context, pageSize int, cursor string) (*models.VideoPage, error) {
	opts := &azcosmos.QueryOptions{
		PageSizeHint: pageSizeHint(pageSize),
		QueryParameters: []azcosmos.QueryParameter{
			{Name: "@visibility", Value: models.VisibilityPublic},
		},
	}
	if cursor != "" {
		opts.ContinuationToken = &cursor
	}

	pager := r.container.NewQueryItemsPager(publicByRecencyQuery, azcosmos.NewPartitionKeyString(models.VisibilityPublic), opts)
	if !pager.More() {
		return &models.VideoPage{Items: []models.Video{}}, nil
	}

	resp, err := pager.NextPage(ctx)
	if err != nil {
		return nil, classifyCosmosError("query videos", "", err)
	}

	videos, err := decodeCosmosItems(resp.Items)
	if err != nil {
		return nil, storeerr.Fatal("decode videos", err)
	}

	page := &models.VideoPage{Items: videos}
	if resp.ContinuationToken != nil {
		page.NextCursor = *resp.ContinuationToken
	}
	return page, nil
}

// pageSizeHint converts pageSize to the SDK's int32 hint without overflowing
func pageSizeHint(pageSize int) int32 {
	if pageSize > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(pageSize)
}

// decodeCosmosItems unmarshals raw query results; Cosmos system properties are ignored
func decodeCosmosItems(items [][]byte) ([]models.Video, error) {
	videos := make([]models.Video, 0, len(items))
	for _, item := range items {
		var video models.Video
		if err := json.Unmarshal(item, &video); err != nil {
			return nil, err
		}
		if video.Tags == nil {
			video.Tags = []string{}
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// classifyCosmosError maps a Cosmos SDK error onto the store error classes
func classifyCosmosError(op, id string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusConflict {
			return storeerr.DuplicateKey(id, err)
		}
		return storeerr.FromStatus(op, respErr.StatusCode, err)
	}
	return storeerr.Transient(op, err)
}
