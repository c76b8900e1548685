package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	appstorage "github.com/JakeFAU/sitemap-harvester/internal/storage"
)

// newTestClient points a storage client at handler with auth disabled.
func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestObjectNameAppliesPrefix(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.NotFoundHandler())
	store, err := New(client, Config{Bucket: "b", Prefix: "/runs/abc/"})
	require.NoError(t, err)
	require.Equal(t, "runs/abc/screenshots/Home.png", store.ObjectName("screenshots/Home.png"))

	bare, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	require.Equal(t, "article_text.csv", bare.ObjectName("article_text.csv"))
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotName  string
		gotBody  string
		gotPaths []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPaths = append(gotPaths, r.URL.Path)
		gotName = r.URL.Query().Get("name")
		gotBody = string(body)
		mu.Unlock()
		fmt.Fprintf(w, `{"bucket":"test-bucket","name":%q}`, gotName)
	})
	store, err := New(newTestClient(t, handler), Config{Bucket: "test-bucket", Prefix: "run-1"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "articles/Home.txt",
		appstorage.ContentTypeText, strings.NewReader("Title: Home"))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/run-1/articles/Home.txt", uri)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, gotPaths)
	assert.Contains(t, gotPaths[0], "/upload/storage/v1/b/test-bucket/o")
	assert.Equal(t, "run-1/articles/Home.txt", gotName)
	assert.Contains(t, gotBody, "Title: Home")
}

func TestPutObjectSurfacesServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})
	store, err := New(newTestClient(t, handler), Config{Bucket: "test-bucket"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "x.png", appstorage.ContentTypePNG, strings.NewReader("png"))
	require.Error(t, err)

	_, err = store.PutObject(context.Background(), "", appstorage.ContentTypePNG, strings.NewReader("png"))
	require.ErrorIs(t, err, appstorage.ErrEmptyPath)
}
