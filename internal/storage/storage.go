// Package storage defines where harvest artifacts are written. Screenshots,
// article text files and dataset CSVs all go through a BlobStore so the
// command can target the local filesystem, GCS or memory without changes.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrEmptyPath is returned when an object path is blank.
var ErrEmptyPath = errors.New("object path is required")

// BlobStore persists a single object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Content types used for artifacts.
const (
	ContentTypePNG  = "image/png"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)
