// Package urlstore persists discovered URL records as an append-only CSV file.
package urlstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/sitemap-harvester/internal/sitemap"
)

// DefaultPath is the store file used when none is configured.
const DefaultPath = "urls.csv"

// ErrMissingLocColumn is returned by Load when the header has no loc column.
var ErrMissingLocColumn = errors.New("csv has no loc column")

// Store appends URL records to a CSV file. The file is opened per Append, so
// every batch is flushed on its own.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store for path.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("url store path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes records in order. The header row is written only when the file
// is new or empty; existing files are never rewritten.
func (s *Store) Append(ctx context.Context, records []sitemap.URLRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create store dir %s: %w", dir, err)
		}
	}
	// #nosec G304 -- the store path is operator supplied.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(sitemap.Columns); err != nil {
			_ = f.Close()
			return fmt.Errorf("write header to %s: %w", s.path, err)
		}
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			_ = f.Close()
			return fmt.Errorf("write row to %s: %w", s.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// Load reads every record from a store file. Columns are located by header
// name; lastmod and priority fall back to sitemap.NotAvailable when absent.
// Rows with an empty loc are skipped.
func Load(path string) ([]sitemap.URLRecord, error) {
	// #nosec G304 -- the store path is operator supplied.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses store rows from r.
func Read(r io.Reader) ([]sitemap.URLRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	locIdx, ok := cols["loc"]
	if !ok {
		return nil, ErrMissingLocColumn
	}

	var records []sitemap.URLRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		loc := field(row, locIdx, "")
		if loc == "" {
			continue
		}
		records = append(records, sitemap.URLRecord{
			Loc:      loc,
			LastMod:  fieldByName(row, cols, "lastmod"),
			Priority: fieldByName(row, cols, "priority"),
		})
	}
	return records, nil
}

// Locs returns the loc column of records in order.
func Locs(records []sitemap.URLRecord) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Loc)
	}
	return out
}

// Window returns items[offset:offset+limit]. A limit <= 0 means no limit and
// an offset past the end yields an empty slice.
func Window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func fieldByName(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok {
		return sitemap.NotAvailable
	}
	return field(row, idx, sitemap.NotAvailable)
}

func field(row []string, idx int, fallback string) string {
	if idx >= len(row) {
		return fallback
	}
	return strings.TrimSpace(row[idx])
}
