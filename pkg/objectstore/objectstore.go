// Package objectstore implements the asset uploader on an S3-compatible
// bucket through minio-go.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mdsxbm/tapcanvas/pkg/assets"
)

// Config holds the bucket connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// PublicBaseURL prefixes object keys in returned URLs. When empty the
	// path-style bucket URL on Endpoint is used.
	PublicBaseURL string
}

// Uploader stores assets in one bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	base   string
}

var _ assets.Uploader = (*Uploader)(nil)

// New connects to the endpoint and creates the bucket if it does not exist.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "tapcanvas"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("objectstore: creating bucket %s: %w", bucket, err)
		}
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}
	return &Uploader{client: client, bucket: bucket, base: base}, nil
}

// URL returns the public URL of key.
func (u *Uploader) URL(key string) string {
	return u.base + "/" + strings.TrimLeft(key, "/")
}

// Owns reports whether url points into this bucket's public prefix.
func (u *Uploader) Owns(url string) bool {
	return strings.HasPrefix(url, u.base+"/")
}

// Exists stats key.
func (u *Uploader) Exists(ctx context.Context, key string) (string, bool, error) {
	_, err := u.client.StatObject(ctx, u.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return u.URL(key), true, nil
}

// Put uploads r under key.
func (u *Uploader) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if size == 0 {
		size = -1
	}
	_, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return u.URL(key), nil
}

// HealthCheck verifies the bucket is reachable.
func (u *Uploader) HealthCheck(ctx context.Context) error {
	_, err := u.client.BucketExists(ctx, u.bucket)
	return err
}
