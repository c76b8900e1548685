// Package dataset turns collected extraction records into one tabular
// artifact, optionally mirroring the rows into a database.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/clock/system"
	"github.com/JakeFAU/sitemap-harvester/internal/extract"
	"github.com/JakeFAU/sitemap-harvester/internal/metrics"
	"github.com/JakeFAU/sitemap-harvester/internal/storage"
)

// DefaultFileName is the artifact written when no name is configured.
const DefaultFileName = "article_text.csv"

// Columns is the dataset header.
var Columns = []string{"url", "title", "text", "screenshot"}

// RecordSink receives a copy of every aggregated record.
type RecordSink interface {
	InsertRecords(ctx context.Context, runID string, at time.Time, records []extract.Record) error
}

// Clock supplies the timestamp stamped on mirrored rows.
type Clock interface {
	Now() time.Time
}

// Config names the artifact and the run it belongs to.
type Config struct {
	FileName string
	RunID    string
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithSink mirrors records into sink after the artifact is written.
func WithSink(sink RecordSink) Option {
	return func(a *Aggregator) { a.sink = sink }
}

// WithClock overrides the clock used for mirrored rows.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// Aggregator writes the dataset artifact.
type Aggregator struct {
	blobs  storage.BlobStore
	sink   RecordSink
	clock  Clock
	cfg    Config
	logger *zap.Logger
}

// New builds an Aggregator writing through blobs.
func New(blobs storage.BlobStore, cfg Config, logger *zap.Logger, opts ...Option) (*Aggregator, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.FileName == "" {
		cfg.FileName = DefaultFileName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		blobs:  blobs,
		clock:  system.New(),
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Aggregate writes one row per record, in the order given, as a single
// artifact and returns its URI. Write failures are returned and not retried.
// Mirror failures are logged only.
func (a *Aggregator) Aggregate(ctx context.Context, records []extract.Record) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return "", err
	}
	uri, err := a.blobs.PutObject(ctx, a.cfg.FileName, storage.ContentTypeCSV, &buf)
	if err != nil {
		return "", fmt.Errorf("write dataset %s: %w", a.cfg.FileName, err)
	}
	metrics.ObserveDatasetRows(len(records))
	a.logger.Info("dataset saved", zap.String("artifact", uri), zap.Int("rows", len(records)))

	if a.sink != nil && len(records) > 0 {
		if err := a.sink.InsertRecords(ctx, a.cfg.RunID, a.clock.Now(), records); err != nil {
			a.logger.Warn("mirror dataset rows", zap.Error(err))
		}
	}
	return uri, nil
}

// formatBool writes True/False so pandas reads the column back as bool.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Encode writes records as CSV with the dataset header. A nil text becomes
// an empty cell.
func Encode(w io.Writer, records []extract.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		text := ""
		if rec.Text != nil {
			text = *rec.Text
		}
		row := []string{rec.URL, rec.Title, text, formatBool(rec.ScreenshotTaken)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", rec.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}
	return nil
}
