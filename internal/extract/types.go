package extract

import (
	"sync"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultWorkers       = 3
	DefaultTextSelector  = "body"
	DefaultScreenshotDir = "screenshots"
	DefaultArticlesDir   = "articles"
	// NotFoundText stands in for page text when the selector matches nothing.
	NotFoundText = "Not found"
)

// Record is one extracted page. Text is nil when only a screenshot was taken.
type Record struct {
	URL             string
	Title           string
	Text            *string
	ScreenshotTaken bool
}

// Options select what each URL produces.
type Options struct {
	TakeScreenshot   bool
	CollectToDataset bool
}

// Config controls the pool.
type Config struct {
	Workers       int
	TextSelector  string
	ScreenshotDir string
	ArticlesDir   string
	// UniqueFilenames suffixes artifact names with a digest of the URL so
	// pages sharing a title do not overwrite one another.
	UniqueFilenames bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.TextSelector == "" {
		c.TextSelector = DefaultTextSelector
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = DefaultScreenshotDir
	}
	if c.ArticlesDir == "" {
		c.ArticlesDir = DefaultArticlesDir
	}
	return c
}

// Summary counts per-URL outcomes of one run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Results is the collection shared by all workers. Append order follows
// completion order and carries no meaning.
type Results struct {
	mu      sync.Mutex
	records []Record
}

// Add appends r atomically.
func (r *Results) Add(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Snapshot copies the records gathered so far.
func (r *Results) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Len reports the number of records.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
