package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"societyhub/internal/logger"
)

const defaultGCSPublicBase = "https://storage.googleapis.com"

// GCSConfig configures the Google Cloud Storage uploader.
type GCSConfig struct {
	Bucket          string
	PublicBaseURL   string
	CredentialsFile string
	// EmulatorHost points the client at a fake-gcs-server style emulator.
	EmulatorHost string
}

// GCSUploader writes media objects to a GCS bucket.
type GCSUploader struct {
	client  *storage.Client
	bucket  string
	baseURL string
	log     *logger.Logger
}

// NewGCSUploader creates a storage client for cfg.
func NewGCSUploader(ctx context.Context, cfg GCSConfig, log *logger.Logger) (*GCSUploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	baseURL := cfg.PublicBaseURL
	switch {
	case cfg.EmulatorHost != "":
		host := strings.TrimRight(cfg.EmulatorHost, "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
		if baseURL == "" {
			baseURL = host
		}
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	if baseURL == "" {
		baseURL = defaultGCSPublicBase
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	log = log.With("service", "GCSUploader")
	log.Info("object storage initialized", "bucket", cfg.Bucket, "public_base_url", baseURL, "emulator", cfg.EmulatorHost != "")
	return &GCSUploader{client: client, bucket: cfg.Bucket, baseURL: baseURL, log: log}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, data []byte, path string) (string, error) {
	w := u.client.Bucket(u.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType(data)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}
	return joinURL(u.baseURL, u.bucket+"/"+path), nil
}

func (u *GCSUploader) Remove(ctx context.Context, path string) error {
	err := u.client.Bucket(u.bucket).Object(path).Delete(ctx)
	if err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
