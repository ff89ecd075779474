package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/clipvault/video-service/internal/storeerr"
)

// MaxS3PresignTTL is the longest lifetime SigV4 allows for a presigned URL
const MaxS3PresignTTL = 7 * 24 * time.Hour

// s3ObjectAPI is the part of *s3.Client the store uses
type s3ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3PresignAPI is the part of *s3.PresignClient the store uses
type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3BlobStore stores blobs in an S3 (or S3-compatible) bucket
type S3BlobStore struct {
	objects   s3ObjectAPI
	presigner s3PresignAPI
	bucket    string
}

// NewS3BlobStore loads AWS credentials from the default chain.
// A non-empty endpoint targets an S3-compatible service with path-style addressing.
func NewS3BlobStore(ctx context.Context, bucket, region, endpoint string) (*S3BlobStore, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobStore{
		objects:   client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}, nil
}

// Put uploads the file at localPath as object key
func (s *S3BlobStore) Put(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return storeerr.Fatal("put blob", err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.objects.PutObject(ctx, input); err != nil {
		return classifyS3Error("put blob", err)
	}
	return nil
}

// GenerateReadReference presigns a GET for key.
// ttl is capped at MaxS3PresignTTL; a shorter lifetime never outlives the requested one.
func (s *S3BlobStore) GenerateReadReference(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ttl = min(ttl, MaxS3PresignTTL)

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classifyS3Error("generate read reference", err)
	}
	return req.URL, nil
}

// Delete removes object key
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error("delete blob", err)
	}
	return nil
}

// classifyS3Error maps an AWS SDK error onto the store error classes
func classifyS3Error(op string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return storeerr.FromStatus(op, respErr.HTTPStatusCode(), err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultClient {
			return storeerr.Fatal(op, err)
		}
		return storeerr.Transient(op, err)
	}
	return storeerr.Transient(op, err)
}
