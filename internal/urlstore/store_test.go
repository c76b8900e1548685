package urlstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-harvester/internal/sitemap"
)

func TestAppendWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "urls.csv")
	store, err := New(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, []sitemap.URLRecord{
		{Loc: "https://example.com/a", LastMod: "2024-06-15", Priority: "0.8"},
	}))
	require.NoError(t, store.Append(ctx, []sitemap.URLRecord{
		{Loc: "https://example.com/b", LastMod: sitemap.NotAvailable, Priority: sitemap.NotAvailable},
	}))

	// A second store on the same file must not add another header.
	again, err := New(path)
	require.NoError(t, err)
	require.NoError(t, again.Append(ctx, []sitemap.URLRecord{
		{Loc: "https://example.com/c", LastMod: sitemap.NotAvailable, Priority: "0.1"},
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"loc,lastmod,priority",
		"https://example.com/a,2024-06-15,0.8",
		"https://example.com/b,n/a,n/a",
		"https://example.com/c,n/a,0.1",
		"",
	}, "\n"), string(raw))
}

func TestAppendNoRecordsDoesNotCreateFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.csv")
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), nil))

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestAppendToEmptyExistingFileWritesHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), []sitemap.URLRecord{{Loc: "https://example.com/a", LastMod: "n/a", Priority: "n/a"}}))

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestAppendCanceledContext(t *testing.T) {
	t.Parallel()

	store, err := New(filepath.Join(t.TempDir(), "urls.csv"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Append(ctx, []sitemap.URLRecord{{Loc: "https://example.com/a"}}))
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)
}

func TestLoadRoundTripAndSentinels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.csv")
	store, err := New(path)
	require.NoError(t, err)
	want := []sitemap.URLRecord{
		{Loc: "https://example.com/a", LastMod: "2024-06-15", Priority: "0.8"},
		{Loc: "https://example.com/b,comma", LastMod: sitemap.NotAvailable, Priority: sitemap.NotAvailable},
	}
	require.NoError(t, store.Append(context.Background(), want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b,comma"}, Locs(got))
}

func TestReadLocatesColumnsByName(t *testing.T) {
	t.Parallel()

	input := "\ufeffpriority,loc\n0.5,https://example.com/a\n0.1,\n,https://example.com/b\n"
	got, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []sitemap.URLRecord{
		{Loc: "https://example.com/a", LastMod: sitemap.NotAvailable, Priority: "0.5"},
		{Loc: "https://example.com/b", LastMod: sitemap.NotAvailable, Priority: ""},
	}, got)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("url,lastmod\nhttps://example.com,n/a\n"))
	require.ErrorIs(t, err, ErrMissingLocColumn)

	got, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestWindow(t *testing.T) {
	t.Parallel()

	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	tests := []struct {
		name   string
		offset int
		limit  int
		want   []int
	}{
		{name: "no limit", offset: 0, limit: 0, want: items},
		{name: "legacy rows 2 through 14", offset: 2, limit: 13, want: []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
		{name: "limit past end", offset: 14, limit: 10, want: []int{14, 15}},
		{name: "offset past end", offset: 20, limit: 1, want: []int{}},
		{name: "negative offset", offset: -3, limit: 2, want: []int{0, 1}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Window(items, tt.offset, tt.limit))
		})
	}
}
