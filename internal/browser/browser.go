// Package browser drives isolated headless Chrome sessions, one per page.
package browser

import (
	"context"
	"errors"
	"time"
)

// DefaultNavigationTimeout bounds each session operation when none is configured.
const DefaultNavigationTimeout = 30 * time.Second

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("browser session closed")
	// ErrTimeout marks a page operation that ran past its deadline.
	ErrTimeout = errors.New("page operation timed out")
	// ErrNoSuchElement is returned by VisibleText when the selector matches nothing.
	ErrNoSuchElement = errors.New("no element matches selector")
)

// Launcher opens new sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one isolated page. It must be closed after use; Close is idempotent.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	VisibleText(ctx context.Context, selector string) (string, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
