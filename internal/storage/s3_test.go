package storage

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/clipvault/video-service/internal/storeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Objects records object calls and returns configured errors
type mockS3Objects struct {
	putErr     error
	deleteErr  error
	putInput   *s3.PutObjectInput
	putContent []byte
	deletedKey string
}

func (m *mockS3Objects) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.putInput = params
	if m.putErr != nil {
		return nil, m.putErr
	}
	buf := make([]byte, 64)
	n, _ := params.Body.Read(buf)
	m.putContent = buf[:n]
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Objects) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.deletedKey = aws.ToString(params.Key)
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

// mockS3Presigner captures the requested expiry
type mockS3Presigner struct {
	err     error
	expires time.Duration
}

func (m *mockS3Presigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	m.expires = opts.Expires
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.s3.amazonaws.com/" + aws.ToString(params.Key) + "?X-Amz-Signature=abc",
		Method: http.MethodGet,
	}, nil
}

// s3StatusError builds the error the SDK returns for an HTTP failure
func s3StatusError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("service said no"),
		},
		RequestID: "req-1",
	}
}

func TestS3BlobStore_Put(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source")
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0o644))

	tests := []struct {
		name          string
		localPath     string
		putErr        error
		expectedError error
	}{
		{name: "success", localPath: src},
		{name: "missing staged file", localPath: src + ".missing", expectedError: storeerr.ErrFatal},
		{name: "service unavailable", localPath: src, putErr: s3StatusError(503), expectedError: storeerr.ErrTransient},
		{name: "bad request", localPath: src, putErr: s3StatusError(400), expectedError: storeerr.ErrFatal},
		{name: "network error", localPath: src, putErr: context.DeadlineExceeded, expectedError: storeerr.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := &mockS3Objects{putErr: tt.putErr}
			store := &S3BlobStore{objects: objects, presigner: &mockS3Presigner{}, bucket: "videos"}

			err := store.Put(context.Background(), "1-abc-a_b.mp4", tt.localPath, "video/mp4")

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "videos", aws.ToString(objects.putInput.Bucket))
			assert.Equal(t, "1-abc-a_b.mp4", aws.ToString(objects.putInput.Key))
			assert.Equal(t, "video/mp4", aws.ToString(objects.putInput.ContentType))
			assert.Equal(t, "0123456789", string(objects.putContent))
		})
	}
}

func TestS3BlobStore_GenerateReadReference(t *testing.T) {
	t.Run("ttl capped", func(t *testing.T) {
		presigner := &mockS3Presigner{}
		store := &S3BlobStore{objects: &mockS3Objects{}, presigner: presigner, bucket: "videos"}

		ref, err := store.GenerateReadReference(context.Background(), "clip.mp4", 365*24*time.Hour)

		require.NoError(t, err)
		assert.Contains(t, ref, "clip.mp4")
		assert.Equal(t, MaxS3PresignTTL, presigner.expires)
	})

	t.Run("short ttl kept", func(t *testing.T) {
		presigner := &mockS3Presigner{}
		store := &S3BlobStore{objects: &mockS3Objects{}, presigner: presigner, bucket: "videos"}

		_, err := store.GenerateReadReference(context.Background(), "clip.mp4", time.Hour)

		require.NoError(t, err)
		assert.Equal(t, time.Hour, presigner.expires)
	})

	t.Run("presign failure", func(t *testing.T) {
		apiErr := &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Fault: smithy.FaultClient}
		store := &S3BlobStore{objects: &mockS3Objects{}, presigner: &mockS3Presigner{err: apiErr}, bucket: "videos"}

		_, err := store.GenerateReadReference(context.Background(), "clip.mp4", time.Hour)

		assert.ErrorIs(t, err, storeerr.ErrFatal)
	})
}

func TestS3BlobStore_Delete(t *testing.T) {
	objects := &mockS3Objects{}
	store := &S3BlobStore{objects: objects, presigner: &mockS3Presigner{}, bucket: "videos"}

	require.NoError(t, store.Delete(context.Background(), "clip.mp4"))
	assert.Equal(t, "clip.mp4", objects.deletedKey)

	objects.deleteErr = s3StatusError(500)
	assert.ErrorIs(t, store.Delete(context.Background(), "clip.mp4"), storeerr.ErrTransient)
}

func TestClassifyS3Error(t *testing.T) {
	serverFault := &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer}

	assert.ErrorIs(t, classifyS3Error("op", serverFault), storeerr.ErrTransient)
	assert.ErrorIs(t, classifyS3Error("op", s3StatusError(429)), storeerr.ErrTransient)
	assert.ErrorIs(t, classifyS3Error("op", s3StatusError(403)), storeerr.ErrFatal)
}
