package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/sitemap-harvester/internal/browser"
)

type fakePage struct {
	title    string
	text     string
	navErr   error
	textErr  error
	shotErr  error
	panicMsg string
	delay    time.Duration
}

type fakeLauncher struct {
	mu        sync.Mutex
	pages     map[string]fakePage
	launchErr error
	launched  int
	closed    int
	inFlight  int
	peak      int
	visits    map[string]int
}

func newFakeLauncher(pages map[string]fakePage) *fakeLauncher {
	return &fakeLauncher{pages: pages, visits: make(map[string]int)}
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.launched++
	l.inFlight++
	if l.inFlight > l.peak {
		l.peak = l.inFlight
	}
	return &fakeSession{launcher: l}, nil
}

func (l *fakeLauncher) stats() (launched, closed, peak int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched, l.closed, l.peak
}

func (l *fakeLauncher) visitCount(u string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visits[u]
}

type fakeSession struct {
	launcher *fakeLauncher
	page     fakePage
	closed   bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.launcher.mu.Lock()
	page, ok := s.launcher.pages[url]
	s.launcher.visits[url]++
	s.launcher.mu.Unlock()
	if !ok {
		return fmt.Errorf("no page for %s", url)
	}
	s.page = page
	if page.panicMsg != "" {
		panic(page.panicMsg)
	}
	if page.delay > 0 {
		select {
		case <-time.After(page.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return page.navErr
}

func (s *fakeSession) Title(context.Context) (string, error) {
	return s.page.title, nil
}

func (s *fakeSession) VisibleText(_ context.Context, _ string) (string, error) {
	if s.page.textErr != nil {
		return "", s.page.textErr
	}
	return s.page.text, nil
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	if s.page.shotErr != nil {
		return nil, s.page.shotErr
	}
	return []byte("png:" + s.page.title), nil
}

func (s *fakeSession) Close() error {
	if s.closed {
		return errors.New("closed twice")
	}
	s.closed = true
	s.launcher.mu.Lock()
	s.launcher.closed++
	s.launcher.inFlight--
	s.launcher.mu.Unlock()
	return nil
}
