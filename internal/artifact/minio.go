package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the MinIO/S3 backend
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set
	Region string
	// PublicBaseURL replaces endpoint/bucket when building object URLs (CDN, proxy)
	PublicBaseURL string
}

// MinioBackend stores artifacts in a MinIO or S3-compatible bucket
type MinioBackend struct {
	client *miniogo.Client
	cfg    MinioConfig
}

// NewMinioBackend creates the client. It does not contact the server.
func NewMinioBackend(cfg MinioConfig) (*MinioBackend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioBackend{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if it is missing
func (m *MinioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *MinioBackend) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for info := range m.client.ListObjects(ctx, m.cfg.Bucket, miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, info.Err)
		}
		out = append(out, Object{Key: info.Key, URL: m.objectURL(info.Key)})
	}
	return out, nil
}

// Upload writes key only if it does not exist yet (If-None-Match: *)
func (m *MinioBackend) Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	opts := miniogo.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")

	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		resp := miniogo.ToErrorResponse(err)
		if resp.StatusCode == http.StatusPreconditionFailed || resp.Code == "PreconditionFailed" {
			return Object{}, fmt.Errorf("%w: %s", ErrUploadConflict, key)
		}
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return Object{Key: key, URL: m.objectURL(key)}, nil
}

func (m *MinioBackend) objectURL(key string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(m.cfg.PublicBaseURL, "/") + "/" + key
	}
	u := *m.client.EndpointURL()
	u.Path = "/" + m.cfg.Bucket + "/" + key
	return u.String()
}
