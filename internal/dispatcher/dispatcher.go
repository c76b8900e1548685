// Package dispatcher manages fixed-size worker fan-out over a work queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitemap-harvester/internal/queue/memory"
)

// Source yields work items until it is closed.
type Source[T any] interface {
	Dequeue(ctx context.Context) (T, error)
}

// Handler processes one item. Handlers own their failures; nothing they do
// stops the other workers.
type Handler[T any] func(ctx context.Context, worker int, item T)

// Dispatcher fans out queue work to a fixed pool of workers.
type Dispatcher[T any] struct {
	source  Source[T]
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher running the given number of workers.
func New[T any](source Source[T], workers int, logger *zap.Logger) (*Dispatcher[T], error) {
	if source == nil {
		return nil, errors.New("source is required")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher[T]{
		source:  source,
		workers: workers,
		logger:  logger,
	}, nil
}

// Workers returns the pool size.
func (d *Dispatcher[T]) Workers() int {
	return d.workers
}

// Run starts all workers and blocks until the source is drained and closed,
// or the context ends.
func (d *Dispatcher[T]) Run(ctx context.Context, handle Handler[T]) error {
	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			return d.work(ctx, i, handle)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}

func (d *Dispatcher[T]) work(ctx context.Context, index int, handle Handler[T]) error {
	logger := d.logger.With(zap.Int("worker", index))
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := d.source.Dequeue(ctx)
		switch {
		case err == nil:
		case errors.Is(err, memory.ErrClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("worker %d dequeue: %w", index, err)
		}
		handle(ctx, index, item)
	}
}
