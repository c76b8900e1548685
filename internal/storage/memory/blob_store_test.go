package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-harvester/internal/storage"
)

func TestBlobStorePutGet(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "articles/b.txt", storage.ContentTypeText, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "memory://articles/b.txt", uri)
	_, err = store.PutObject(context.Background(), "articles/a.txt", storage.ContentTypeText, strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "articles/a.txt", storage.ContentTypeText, strings.NewReader("second"))
	require.NoError(t, err)

	obj, ok := store.Get("articles/a.txt")
	require.True(t, ok)
	require.Equal(t, "second", string(obj.Data))
	require.Equal(t, storage.ContentTypeText, obj.ContentType)
	require.Equal(t, []string{"articles/a.txt", "articles/b.txt"}, store.Paths())

	_, ok = store.Get("missing")
	require.False(t, ok)
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.ErrorIs(t, err, storage.ErrEmptyPath)
}
