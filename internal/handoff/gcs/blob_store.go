// Package gcs delivers handoff batches to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

var (
	// ErrNoClient is returned by New without a storage client.
	ErrNoClient = errors.New("gcs handoff: storage client is required")
	// ErrNoBucket is returned by New without a bucket name.
	ErrNoBucket = errors.New("gcs handoff: bucket is required")
	// ErrBatchExists is returned when an object already holds the batch.
	// Delivered batches are never overwritten.
	ErrBatchExists = errors.New("gcs handoff: batch already delivered")
)

// Config names the bucket batches are delivered to.
type Config struct {
	Bucket string `mapstructure:"bucket"`
}

// BlobStore writes one object per batch. Objects are created only if absent.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a BlobStore for cfg.Bucket.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	switch {
	case client == nil:
		return nil, ErrNoClient
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, ErrNoBucket
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// PutObject uploads a batch document in a single request and returns its
// gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("gcs handoff: object path is required")
	}
	obj := s.client.Bucket(s.bucket).Object(path).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	// Batches are small; skip resumable uploads.
	w.ChunkSize = 0

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload batch %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return "", fmt.Errorf("%w: gs://%s/%s", ErrBatchExists, s.bucket, path)
		}
		return "", fmt.Errorf("finish batch %s: %w", path, err)
	}
	return "gs://" + s.bucket + "/" + path, nil
}
