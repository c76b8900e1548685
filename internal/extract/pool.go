package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/browser"
	"github.com/JakeFAU/sitemap-harvester/internal/dispatcher"
	"github.com/JakeFAU/sitemap-harvester/internal/metrics"
	"github.com/JakeFAU/sitemap-harvester/internal/queue/memory"
	"github.com/JakeFAU/sitemap-harvester/internal/storage"
)

// ErrPanic wraps a panic recovered while processing one URL.
var ErrPanic = errors.New("extraction panicked")

// Pool extracts pages with a fixed number of concurrent workers.
type Pool struct {
	launcher browser.Launcher
	blobs    storage.BlobStore
	cfg      Config
	logger   *zap.Logger
}

// NewPool wires a pool. blobs receives screenshots and article files.
func NewPool(launcher browser.Launcher, blobs storage.BlobStore, cfg Config, logger *zap.Logger) (*Pool, error) {
	if launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		launcher: launcher,
		blobs:    blobs,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Run processes every URL exactly once and blocks until all are done.
// Per-URL failures are counted in the summary; the returned error is only
// set when ctx ends early, in which case queued URLs are left unprocessed.
func (p *Pool) Run(ctx context.Context, urls []string, opts Options) (*Results, Summary, error) {
	results := &Results{}
	summary := Summary{Total: len(urls)}
	if len(urls) == 0 {
		return results, summary, nil
	}
	if err := ctx.Err(); err != nil {
		return results, summary, fmt.Errorf("run extraction: %w", err)
	}

	q := memory.NewQueue[string](len(urls))
	for _, u := range urls {
		if err := q.Enqueue(ctx, u); err != nil {
			return results, summary, fmt.Errorf("enqueue %s: %w", u, err)
		}
	}
	q.Close()

	d, err := dispatcher.New[string](q, p.cfg.Workers, p.logger)
	if err != nil {
		return results, summary, fmt.Errorf("create dispatcher: %w", err)
	}

	p.logger.Info("extraction started",
		zap.Int("urls", len(urls)),
		zap.Int("workers", p.cfg.Workers),
		zap.Bool("screenshot", opts.TakeScreenshot),
		zap.Bool("dataset", opts.CollectToDataset),
	)
	var succeeded, failed atomic.Int64
	runErr := d.Run(ctx, func(ctx context.Context, worker int, pageURL string) {
		if err := p.process(ctx, worker, pageURL, opts, results); err != nil {
			failed.Add(1)
			return
		}
		succeeded.Add(1)
	})
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	p.logger.Info("extraction finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	if runErr != nil {
		return results, summary, fmt.Errorf("run extraction: %w", runErr)
	}
	return results, summary, nil
}

// process handles one URL. The session is always closed before it returns,
// panics included.
func (p *Pool) process(ctx context.Context, worker int, pageURL string, opts Options, results *Results) (err error) {
	logger := p.logger.With(zap.Int("worker", worker), zap.String("url", pageURL))
	start := time.Now()
	metrics.ExtractionStarted()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultFailed
			logger.Error("extraction failed", zap.Error(err))
		}
		metrics.ExtractionFinished(pageURL, result, time.Since(start))
	}()

	session, err := p.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("close session", zap.Error(closeErr))
		}
		logger.Debug("session closed")
	}()

	logger.Info("navigating")
	if err := session.Navigate(ctx, pageURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	title, err := session.Title(ctx)
	if err != nil {
		return fmt.Errorf("read title: %w", err)
	}

	if opts.TakeScreenshot {
		return p.captureScreenshot(ctx, logger, session, pageURL, title, opts, results)
	}
	return p.captureText(ctx, logger, session, pageURL, title, opts, results)
}

func (p *Pool) captureScreenshot(
	ctx context.Context,
	logger *zap.Logger,
	session browser.Session,
	pageURL, title string,
	opts Options,
	results *Results,
) error {
	png, err := session.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	name := path.Join(p.cfg.ScreenshotDir, ArtifactName(title, pageURL, p.cfg.UniqueFilenames)+".png")
	uri, err := p.blobs.PutObject(ctx, name, storage.ContentTypePNG, bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("store screenshot: %w", err)
	}
	logger.Info("screenshot saved", zap.String("artifact", uri))
	if opts.CollectToDataset {
		results.Add(Record{URL: pageURL, Title: title, ScreenshotTaken: true})
	}
	return nil
}

func (p *Pool) captureText(
	ctx context.Context,
	logger *zap.Logger,
	session browser.Session,
	pageURL, title string,
	opts Options,
	results *Results,
) error {
	text, err := session.VisibleText(ctx, p.cfg.TextSelector)
	switch {
	case errors.Is(err, browser.ErrNoSuchElement):
		logger.Warn("selector matched nothing", zap.String("selector", p.cfg.TextSelector))
		text = NotFoundText
	case err != nil:
		return fmt.Errorf("read text: %w", err)
	}

	if opts.CollectToDataset {
		results.Add(Record{URL: pageURL, Title: title, Text: &text})
		return nil
	}

	name := path.Join(p.cfg.ArticlesDir, ArtifactName(title, pageURL, p.cfg.UniqueFilenames)+".txt")
	body := fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", pageURL, title, text)
	uri, err := p.blobs.PutObject(ctx, name, storage.ContentTypeText, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("store article: %w", err)
	}
	logger.Info("article saved", zap.String("artifact", uri))
	return nil
}
