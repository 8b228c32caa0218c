// Package gcs provides a ContentSink backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	rootstorage "github.com/JakeFAU/logo-resolver/internal/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Sink uploads artifacts to a configured bucket.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed sink.
func New(client *storage.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store uploads data and returns a gs:// URI.
func (s *Sink) Store(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	key, err := rootstorage.ObjectKey(s.prefix, name)
	if err != nil {
		return "", err //nolint:wrapcheck // already descriptive
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
