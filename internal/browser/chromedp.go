package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the headless browser.
type Config struct {
	Headless          bool
	NoSandbox         bool
	UserAgent         string
	NavigationTimeout time.Duration
	WindowWidth       int
	WindowHeight      int
}

// ChromedpLauncher owns one Chrome process; every Launch opens a fresh tab
// with its own target, so no page state is shared between sessions.
type ChromedpLauncher struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpLauncher starts Chrome and returns a launcher.
func NewChromedpLauncher(cfg Config, logger *zap.Logger) (*ChromedpLauncher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &ChromedpLauncher{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}

// Close shuts down the browser and its allocator.
func (l *ChromedpLauncher) Close() {
	l.browserCancel()
	l.allocCancel()
}

// Launch opens a new tab. Cancelling ctx closes the tab.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch canceled: %w", err)
	}
	timeout := navTimeout(l.cfg.NavigationTimeout)
	tabCtx, tabCancel := chromedp.NewContext(l.browserCtx)
	if err := openTab(ctx, tabCtx, tabCancel, timeout, runTab); err != nil {
		return nil, err
	}
	return newChromedpSession(ctx, tabCtx, tabCancel, timeout, l.cfg.UserAgent), nil
}

func runTab(tabCtx context.Context) error {
	return chromedp.Run(tabCtx)
}

// openTab allocates the tab target within timeout. The first Run binds the
// target's event loop to its context, so it runs on tabCtx itself and expiry
// is enforced by cancelling the tab rather than a derived deadline.
func openTab(
	ctx context.Context,
	tabCtx context.Context,
	tabCancel context.CancelFunc,
	timeout time.Duration,
	open func(context.Context) error,
) error {
	done := make(chan error, 1)
	go func() { done <- open(tabCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			tabCancel()
			return fmt.Errorf("open tab: %w", err)
		}
		return nil
	case <-timer.C:
		tabCancel()
		return fmt.Errorf("open tab: %w", ErrTimeout)
	case <-ctx.Done():
		tabCancel()
		return fmt.Errorf("open tab: %w", ctx.Err())
	}
}

func navTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return DefaultNavigationTimeout
}

type chromedpSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stop      func() bool
	timeout   time.Duration
	userAgent string

	mu     sync.Mutex
	closed bool
}

func newChromedpSession(
	parent context.Context,
	tabCtx context.Context,
	tabCancel context.CancelFunc,
	timeout time.Duration,
	userAgent string,
) *chromedpSession {
	return &chromedpSession{
		ctx:       tabCtx,
		cancel:    tabCancel,
		stop:      context.AfterFunc(parent, tabCancel),
		timeout:   timeout,
		userAgent: userAgent,
	}
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{}
	if s.userAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.userAgent))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	return s.run(ctx, "navigate", actions...)
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, "title", chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (s *chromedpSession) VisibleText(ctx context.Context, selector string) (string, error) {
	// chromedp.Text would wait for the node to appear; query once instead.
	sel, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}
	expr := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.innerText : null; })()`, sel)
	var text *string
	if err := s.run(ctx, "text", chromedp.Evaluate(expr, &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("%w: %s", ErrNoSuchElement, selector)
	}
	return *text, nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG.
	if err := s.run(ctx, "screenshot", chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromedpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stop()
	s.cancel()
	return nil
}

// run executes actions on the tab under the session deadline. The caller's
// ctx can cut the operation short but never extends it.
func (s *chromedpSession) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("chromedp %s: %w", op, err)
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chromedp %s: %w", op, ctx.Err())
		}
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w after %s", op, ErrTimeout, s.timeout)
		}
		return fmt.Errorf("chromedp %s: %w", op, err)
	}
	return nil
}
