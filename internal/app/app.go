// Package app initializes and holds the long-lived services of one harvester
// run, acting as a dependency injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-harvester/internal/config"
	"github.com/JakeFAU/sitemap-harvester/internal/dataset"
	"github.com/JakeFAU/sitemap-harvester/internal/id/uuid"
	"github.com/JakeFAU/sitemap-harvester/internal/logging"
	"github.com/JakeFAU/sitemap-harvester/internal/metrics"
	"github.com/JakeFAU/sitemap-harvester/internal/storage"
	"github.com/JakeFAU/sitemap-harvester/internal/storage/gcs"
	"github.com/JakeFAU/sitemap-harvester/internal/storage/local"
	"github.com/JakeFAU/sitemap-harvester/internal/storage/memory"
	"github.com/JakeFAU/sitemap-harvester/internal/storage/postgres"
)

const shutdownTimeout = 5 * time.Second

// App holds the shared services for one command invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
	blobs  storage.BlobStore
	sink   dataset.RecordSink

	// metricsAddr is empty unless the metrics server is running.
	metricsAddr string
	closers     []func(context.Context) error
}

// New builds the logger from cfg and then the remaining services.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger builds all services around an existing logger. It fails fast
// if any configured service cannot be initialized.
func NewWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		logger: logging.ForRun(logger, runID),
		runID:  runID,
	}

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.blobs = blobs

	if cfg.Database.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			Table:    cfg.Database.Table,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		if err := store.EnsureTable(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.sink = store
		a.logger.Info("Mirroring dataset rows to postgres", zap.String("table", cfg.Database.Table))
	}

	if cfg.Metrics.ListenAddr != "" {
		srv := metrics.NewServer(cfg.Metrics.ListenAddr, a.logger)
		if err := srv.Start(); err != nil {
			a.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		a.closers = append(a.closers, srv.Shutdown)
		a.metricsAddr = srv.Addr()
	}

	a.logger.Debug("Application services initialized", zap.String("storage", cfg.Storage.Backend))
	return a, nil
}

func (a *App) openBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.logger.Info("Using GCS artifact storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.BackendMemory:
		a.logger.Warn("Using in-memory artifact storage; artifacts are discarded on exit")
		return memory.NewBlobStore(), nil
	case config.BackendLocal, "":
		return local.New(local.Config{BaseDir: a.cfg.Output.Dir})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID identifies this invocation.
func (a *App) RunID() string {
	return a.runID
}

// Blobs returns the artifact store.
func (a *App) Blobs() storage.BlobStore {
	return a.blobs
}

// Sink returns the dataset mirror, or nil when none is configured.
func (a *App) Sink() dataset.RecordSink {
	return a.sink
}

// MetricsAddr reports where /metrics is served, or "" when disabled.
func (a *App) MetricsAddr() string {
	return a.metricsAddr
}

// Close shuts down services in reverse order and flushes the logger.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Error shutting down services", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
}
