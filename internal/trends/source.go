package trends

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/ibeckermayer/trendpersona/internal/browser"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/retry"
)

// maxPageBytes bounds how much of the listing page is read
const maxPageBytes = 4 << 20

// Source returns the raw trend listing page
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

// HTTPSource scrapes the listing with a plain GET, retrying transient
// failures and failing fast while the site keeps erroring.
type HTTPSource struct {
	url      string
	client   *http.Client
	executor failsafe.Executor[[]byte]
}

// HTTPOptions tunes HTTPSource retries; zero values pick defaults
type HTTPOptions struct {
	Timeout      time.Duration
	Retry        retry.Config
	BreakerDelay time.Duration
}

// NewHTTPSource creates a source for url
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	}
	if opts.BreakerDelay <= 0 {
		opts.BreakerDelay = 5 * time.Minute
	}

	breaker := circuitbreaker.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return retry.Retryable(err)
		}).
		WithFailureThreshold(3).
		WithDelay(opts.BreakerDelay).
		WithSuccessThreshold(1).
		Build()

	return &HTTPSource{
		url:      url,
		client:   &http.Client{Timeout: opts.Timeout},
		executor: failsafe.With[[]byte](retry.NewPolicy[[]byte](opts.Retry), breaker),
	}
}

// URL returns the page being scraped
func (s *HTTPSource) URL() string { return s.url }

// Fetch downloads the listing page
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	body, err := s.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return s.get(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trends from %s: %w", s.url, err)
	}
	return body, nil
}

func (s *HTTPSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", browser.DefaultUserAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", browser.AcceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, retry.FromStatus(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, retry.Transient(err)
	}
	return body, nil
}

// BrowserSource renders the listing in headless Chrome for sites that build
// the table with JavaScript.
type BrowserSource struct {
	url     string
	timeout time.Duration
}

// NewBrowserSource creates a chromedp-backed source
func NewBrowserSource(url string, timeout time.Duration) *BrowserSource {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &BrowserSource{url: url, timeout: timeout}
}

// URL returns the page being rendered
func (s *BrowserSource) URL() string { return s.url }

// Fetch renders the page and returns its HTML
func (s *BrowserSource) Fetch(ctx context.Context) ([]byte, error) {
	html, err := browser.RenderHTML(ctx, s.url, "tbody", s.timeout)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// NewSource picks the source configured in cfg
func NewSource(cfg config.TrendsConfig) (Source, error) {
	url, err := cfg.SourceURL()
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Render {
		return NewBrowserSource(url, 4*timeout), nil
	}
	return NewHTTPSource(url, HTTPOptions{Timeout: timeout}), nil
}
