package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// GCSStore stores blobs as objects in a Cloud Storage bucket. Credentials come
// from the ambient Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger zerolog.Logger
}

// NewGCSStore creates a client for bucket. The client is shared by every
// request for the lifetime of the process.
func NewGCSStore(ctx context.Context, bucket string, logger zerolog.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := &GCSStore{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		logger: logger.With().Str("component", "blob_gcs").Str("bucket", bucket).Logger(),
	}
	s.logger.Info().Msg("gcs blob store initialized")
	return s, nil
}

func (s *GCSStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.name, key, err)
	}
	// The object is only committed by Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit gs://%s/%s: %w", s.name, key, err)
	}
	return nil
}

func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.name, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.name, key, err)
	}
	return data, nil
}

func (s *GCSStore) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", s.name, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
