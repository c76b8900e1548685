package sitemap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	// DefaultFetchTimeout bounds one sitemap GET.
	DefaultFetchTimeout = 15 * time.Second
	// maxSitemapBytes is the protocol ceiling for an uncompressed sitemap.
	maxSitemapBytes = 50 * 1024 * 1024
)

// FetcherConfig controls the sitemap HTTP client.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	// InsecureTLS skips certificate verification. Many sitemap hosts serve
	// broken chains, so the command line defaults this to true.
	InsecureTLS bool
}

// CollyFetcher implements Fetcher with a Colly collector.
type CollyFetcher struct {
	cfg           FetcherConfig
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewCollyFetcher builds a CollyFetcher. The transport and timeout are set on
// the base collector once; per-request clones share them.
func NewCollyFetcher(cfg FetcherConfig) *CollyFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxSitemapBytes),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(newHTTPTransport(cfg.InsecureTLS))
	c.SetRequestTimeout(cfg.Timeout)

	return &CollyFetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Timeout returns the effective per-request timeout.
func (f *CollyFetcher) Timeout() time.Duration {
	return f.cfg.Timeout
}

// Fetch executes a single GET. Any HTTP status is returned as a Response;
// only transport failures and timeouts produce an error.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Response, error) {
	if rawURL == "" {
		return Response{}, ErrEmptyURL
	}
	var (
		result   Response
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	configureHooks(collector, &result, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return Response{}, err
	}
	if result.URL == "" {
		result.URL = rawURL
	}
	return result, nil
}

func configureHooks(hooks collectorHooks, result *Response, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sitemap fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sitemap visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("sitemap response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(insecure bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// #nosec G402 -- verification is an explicit, configurable policy for sitemap hosts.
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecure},
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
