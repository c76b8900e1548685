// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-harvester/internal/storage"
	"github.com/JakeFAU/sitemap-harvester/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ValidConfig", func(t *testing.T) {
		t.Parallel()
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(store.BaseDir()))
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		t.Parallel()
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "out", "nested")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("NestedPath", func(t *testing.T) {
		path := "screenshots/Home.png"
		uri, err := store.PutObject(ctx, path, storage.ContentTypePNG, strings.NewReader("png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(store.BaseDir(), path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(got))
	})

	t.Run("OverwritesExisting", func(t *testing.T) {
		path := "articles/Same.txt"
		_, err := store.PutObject(ctx, path, storage.ContentTypeText, strings.NewReader("first, longer body"))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, path, storage.ContentTypeText, strings.NewReader("second"))
		require.NoError(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, " ", storage.ContentTypeText, strings.NewReader("data"))
		assert.ErrorIs(t, err, storage.ErrEmptyPath)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.txt", storage.ContentTypeText, strings.NewReader("data"))
		assert.ErrorContains(t, err, "path traversal")
	})
}
