package sitemap

import (
	"context"
	"errors"
)

// NotAvailable is stored for any URL attribute missing from the source document.
// Downstream readers treat it as a value, not an error.
const NotAvailable = "n/a"

// Columns is the fixed UrlStore header.
var Columns = []string{"loc", "lastmod", "priority"}

var (
	// ErrEmptyURL is returned when a walk is started without a sitemap URL.
	ErrEmptyURL = errors.New("sitemap url is empty")
	// ErrBadStatus marks a response whose status is not 200.
	ErrBadStatus = errors.New("unexpected sitemap status")
	// ErrParse marks a document that is not well-formed XML.
	ErrParse = errors.New("parse sitemap")
)

// URLRecord is one page location plus optional metadata.
type URLRecord struct {
	Loc      string `json:"loc"`
	LastMod  string `json:"lastmod"`
	Priority string `json:"priority"`
}

// Row returns the record in UrlStore column order.
func (r URLRecord) Row() []string {
	return []string{r.Loc, r.LastMod, r.Priority}
}

// Document is the parsed form of one sitemap response. A document with
// nested references is an index; one with records is a leaf. Both may be set.
type Document struct {
	Sitemaps []string
	URLs     []URLRecord
}

// IsIndex reports whether the document references child sitemaps.
func (d Document) IsIndex() bool {
	return len(d.Sitemaps) > 0
}

// Response is the raw result of fetching one sitemap.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher performs one GET for a sitemap URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Parser turns raw sitemap bytes into a Document.
type Parser interface {
	Parse(body []byte) (Document, error)
}

// Appender persists discovered records.
type Appender interface {
	Append(ctx context.Context, records []URLRecord) error
}
