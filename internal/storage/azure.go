package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/clipvault/video-service/internal/storeerr"
)

// sasClockSkew backdates SAS start times so clients with a slightly fast clock can use them
const sasClockSkew = 5 * time.Minute

// AzureBlobStore stores blobs in one Azure Storage container
type AzureBlobStore struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobStore connects with a storage account connection string.
// The connection string must carry an account key, SAS generation signs with it.
func NewAzureBlobStore(connectionString, container string) (*AzureBlobStore, error) {
	if connectionString == "" || container == "" {
		return nil, errors.New("azure storage connection string and container name are required")
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureBlobStore{client: client, container: container}, nil
}

// EnsureContainer creates the container if it does not exist yet
func (s *AzureBlobStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return classifyAzureError("create container", err)
	}
	return nil
}

// Put uploads the file at localPath as a block blob named key
func (s *AzureBlobStore) Put(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return storeerr.Fatal("put blob", err)
	}
	defer f.Close()

	opts := &azblob.UploadFileOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := s.client.UploadFile(ctx, s.container, key, f, opts); err != nil {
		return classifyAzureError("put blob", err)
	}
	return nil
}

// GenerateReadReference returns a read-only SAS URL for key that expires after ttl
func (s *AzureBlobStore) GenerateReadReference(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storeerr.Transient("generate read reference", err)
	}

	now := time.Now().UTC()
	start := now.Add(-sasClockSkew)

	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, now.Add(ttl), &blob.GetSASURLOptions{
		StartTime: &start,
	})
	if err != nil {
		// SAS signing is local; it only fails on missing credentials or bad input
		return "", storeerr.Fatal("generate read reference", err)
	}
	return sasURL, nil
}

// Delete removes the blob named key. A missing blob is not an error.
func (s *AzureBlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return classifyAzureError("delete blob", err)
	}
	return nil
}

// classifyAzureError maps an Azure SDK error onto the store error classes
func classifyAzureError(op string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return storeerr.FromStatus(op, respErr.StatusCode, err)
	}
	// no response: the transport failed before the service answered
	return storeerr.Transient(op, err)
}
