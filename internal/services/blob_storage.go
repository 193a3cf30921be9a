package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOBlobStorage deletes attachment blobs by reference. References are
// either bare object keys or full URLs pointing into the configured bucket.
type MinIOBlobStorage struct {
	client *minio.Client
	bucket string
}

func NewMinIOBlobStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOBlobStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	return &MinIOBlobStorage{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *MinIOBlobStorage) DeleteBlob(ctx context.Context, reference string) error {
	objectName, err := s.objectNameFromReference(reference)
	if err != nil {
		return err
	}

	// RemoveObject on a missing key succeeds, which keeps retried sweeps
	// idempotent.
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove blob %q: %w", objectName, err)
	}

	return nil
}

func (s *MinIOBlobStorage) objectNameFromReference(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("empty blob reference")
	}

	if !strings.Contains(reference, "://") {
		return strings.TrimPrefix(reference, "/"), nil
	}

	parsed, err := url.Parse(reference)
	if err != nil {
		return "", fmt.Errorf("parse blob reference: %w", err)
	}

	bucketPrefix := "/" + s.bucket + "/"
	if !strings.HasPrefix(parsed.Path, bucketPrefix) {
		return "", fmt.Errorf("blob reference does not belong to configured bucket")
	}

	return strings.TrimPrefix(parsed.Path, bucketPrefix), nil
}
