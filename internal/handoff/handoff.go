// Package handoff delivers the processed record set to the downstream
// summarizer as a single JSON batch written to a blob store.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

// BlobStore persists an object and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Batch is the artifact consumed by the summarizer.
type Batch struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Records     []harvest.ContentRecord `json:"records"`
}

// Sink writes batches under a key prefix, one object per run.
type Sink struct {
	store  BlobStore
	prefix string
}

// NewSink creates a Sink writing through store.
func NewSink(store BlobStore, prefix string) *Sink {
	return &Sink{store: store, prefix: strings.Trim(prefix, "/")}
}

// ObjectPath returns where a batch is written:
// <prefix>/YYYY/MM/DD/<run id>.json.
func (s *Sink) ObjectPath(batch Batch) string {
	return path.Join(s.prefix, batch.GeneratedAt.UTC().Format("2006/01/02"), batch.RunID+".json")
}

// Write serializes batch and stores it. It returns the object URI.
func (s *Sink) Write(ctx context.Context, batch Batch) (string, error) {
	if strings.TrimSpace(batch.RunID) == "" {
		return "", fmt.Errorf("handoff: run id is required")
	}
	if batch.Records == nil {
		batch.Records = []harvest.ContentRecord{}
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("handoff: encode batch: %w", err)
	}
	uri, err := s.store.PutObject(ctx, s.ObjectPath(batch), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("handoff: write batch: %w", err)
	}
	return uri, nil
}
