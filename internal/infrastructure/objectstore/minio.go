// Package objectstore uploads binaries to S3-compatible storage (Cloudflare R2, MinIO, AWS S3).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"Grawler/internal/config"
	"Grawler/internal/ports"
)

// MinioStore implements ports.BlobStore with minio-go.
type MinioStore struct {
	client *minio.Client
	bucket string
}

var _ ports.BlobStore = (*MinioStore)(nil)

// NewMinioStore builds a client from configuration. The endpoint may carry a scheme;
// https (or no scheme) enables TLS.
func NewMinioStore(cfg config.ObjectStoreConfig) (*MinioStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("object storage credentials are not configured")
	}

	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads body under key. size may be -1 when unknown.
func (s *MinioStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, opts); err != nil {
		return fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// splitEndpoint turns "https://host:port/" into ("host:port", true).
func splitEndpoint(endpoint string) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), true, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid object storage endpoint %q: %w", endpoint, err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("invalid object storage endpoint %q: missing host", endpoint)
	}
	return parsed.Host, parsed.Scheme != "http", nil
}
