package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type upload struct {
	path, name, uploadType, generationMatch, body string
}

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "harvest-batches"})
	require.NoError(t, err)
	return store
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	uploads := make(chan upload, 1)
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case uploads <- upload{
			path:            r.URL.Path,
			name:            r.URL.Query().Get("name"),
			uploadType:      r.URL.Query().Get("uploadType"),
			generationMatch: r.URL.Query().Get("ifGenerationMatch"),
			body:            string(body),
		}:
		default:
		}
		fmt.Fprintln(w, `{"name": "batches/run.json", "bucket": "harvest-batches"}`)
	}))

	uri, err := store.PutObject(context.Background(), "/batches/run.json", "application/json", strings.NewReader(`{"run_id":"run"}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://harvest-batches/batches/run.json", uri)

	got := <-uploads
	assert.Contains(t, got.path, "/upload/storage/v1/b/harvest-batches/o")
	assert.Equal(t, "batches/run.json", got.name)
	assert.Equal(t, "multipart", got.uploadType)
	assert.Equal(t, "0", got.generationMatch, "batches are created only if absent")
	assert.Contains(t, got.body, `{"run_id":"run"}`)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := store.PutObject(context.Background(), "batches/run.json", "application/json", strings.NewReader("{}"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBatchExists)
}

func TestPutObjectExistingBatch(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		fmt.Fprintln(w, `{"error": {"code": 412, "message": "At least one of the pre-conditions you specified did not hold."}}`)
	}))
	_, err := store.PutObject(context.Background(), "batches/run.json", "application/json", strings.NewReader("{}"))
	require.ErrorIs(t, err, ErrBatchExists)
	assert.Contains(t, err.Error(), "gs://harvest-batches/batches/run.json")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorIs(t, err, ErrNoClient)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_, err = New(client, Config{Bucket: "  "})
	require.ErrorIs(t, err, ErrNoBucket)

	_, err = (&BlobStore{client: client, bucket: "b"}).PutObject(context.Background(), " / ", "", strings.NewReader(""))
	require.Error(t, err)
}
