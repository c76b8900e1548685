package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/metrics"
)

// Stats summarizes one walk.
type Stats struct {
	Sitemaps int // documents fetched and parsed
	Failed   int // nodes that failed to fetch, returned non-200, parse or persist
	Skipped  int // references skipped because they were already visited
	URLs     int // records appended to the store
}

// Resolver walks a sitemap tree and appends every leaf record to a store.
// Walk state lives in the call, so one Resolver may serve concurrent walks.
type Resolver struct {
	fetcher Fetcher
	parser  Parser
	logger  *zap.Logger
}

// NewResolver wires a Resolver.
func NewResolver(fetcher Fetcher, parser Parser, logger *zap.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if parser == nil {
		parser = NewXMLParser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher: fetcher,
		parser:  parser,
		logger:  logger,
	}, nil
}

// Resolve walks the tree rooted at rawURL. It returns true iff the root node
// itself contributed at least one record; records from descendants are
// appended regardless. Failures are logged, never returned.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, store Appender) bool {
	found, _ := r.Walk(ctx, rawURL, store)
	return found
}

// Walk is Resolve plus a summary of the whole walk.
func (r *Resolver) Walk(ctx context.Context, rawURL string, store Appender) (bool, Stats) {
	w := &walk{
		resolver: r,
		store:    store,
		visited:  make(map[string]struct{}),
	}
	found := w.node(ctx, strings.TrimSpace(rawURL))
	r.logger.Info("Sitemap walk finished",
		zap.String("sitemap", rawURL),
		zap.Int("sitemaps", w.stats.Sitemaps),
		zap.Int("failed", w.stats.Failed),
		zap.Int("skipped", w.stats.Skipped),
		zap.Int("urls", w.stats.URLs),
	)
	return found, w.stats
}

// walk carries per-call state so a cycle guard never outlives one Resolve.
type walk struct {
	resolver *Resolver
	store    Appender
	visited  map[string]struct{}
	stats    Stats
}

func (w *walk) node(ctx context.Context, rawURL string) bool {
	logger := w.resolver.logger.With(zap.String("sitemap", rawURL))
	if rawURL == "" {
		logger.Error("No sitemap URL provided", zap.Error(ErrEmptyURL))
		return false
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("Sitemap walk canceled", zap.Error(err))
		return false
	}
	w.visited[rawURL] = struct{}{}

	logger.Info("Fetching sitemap")
	doc, err := w.load(ctx, rawURL)
	if err != nil {
		w.stats.Failed++
		metrics.ObserveSitemap(metrics.ResultFailed)
		w.logFailure(logger, err)
		return false
	}
	w.stats.Sitemaps++
	metrics.ObserveSitemap(metrics.ResultOK)

	if doc.IsIndex() {
		logger.Info("Found nested sitemaps", zap.Int("count", len(doc.Sitemaps)))
		for _, child := range doc.Sitemaps {
			if _, seen := w.visited[child]; seen {
				w.stats.Skipped++
				metrics.ObserveSitemap(metrics.ResultSkipped)
				logger.Warn("Skipping already visited sitemap", zap.String("child", child))
				continue
			}
			w.node(ctx, child)
		}
	}

	logger.Info("Found URLs in sitemap", zap.Int("count", len(doc.URLs)))
	if len(doc.URLs) == 0 {
		return false
	}
	if w.store == nil {
		logger.Error("No URL store configured; discarding records", zap.Int("count", len(doc.URLs)))
		return false
	}
	if err := w.store.Append(ctx, doc.URLs); err != nil {
		w.stats.Failed++
		logger.Error("Failed to save URLs", zap.Int("count", len(doc.URLs)), zap.Error(err))
		return false
	}
	w.stats.URLs += len(doc.URLs)
	metrics.ObserveDiscovered(len(doc.URLs))
	logger.Info("Saved URLs", zap.Int("count", len(doc.URLs)))
	return true
}

func (w *walk) load(ctx context.Context, rawURL string) (Document, error) {
	resp, err := w.resolver.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	doc, err := w.resolver.parser.Parse(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func (w *walk) logFailure(logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, ErrBadStatus):
		logger.Warn("Failed to fetch sitemap", zap.Error(err))
	case errors.Is(err, ErrParse):
		logger.Error("Failed to parse sitemap", zap.Error(err))
	default:
		logger.Error("Request failed", zap.Error(err))
	}
}
