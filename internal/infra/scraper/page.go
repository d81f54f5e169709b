// Package scraper fetches the disruption listing and extracts disruptions from it.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/fetcher"
	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/resilience"
	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

// CacheBusterParam is the query parameter that defeats CDN caching.
const CacheBusterParam = "cachebuster"

// PageFetcher downloads the disruption listing the way a browser would.
type PageFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	userAgent      string
	maxBodySize    int64
	cacheBuster    func() int
	logger         *slog.Logger
}

// PageOption configures a PageFetcher.
type PageOption func(*PageFetcher)

// WithUserAgent fixes the User-Agent instead of drawing one from the pool.
func WithUserAgent(ua string) PageOption {
	return func(f *PageFetcher) { f.userAgent = ua }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) PageOption {
	return func(f *PageFetcher) { f.retryConfig = cfg }
}

// WithMaxBodySize overrides the 10MB response limit.
func WithMaxBodySize(n int64) PageOption {
	return func(f *PageFetcher) { f.maxBodySize = n }
}

// NewPageFetcher creates a PageFetcher. The User-Agent is chosen once here and
// used for every request the fetcher makes.
func NewPageFetcher(client *http.Client, logger *slog.Logger, opts ...PageOption) *PageFetcher {
	f := &PageFetcher{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DisruptionPageConfig()),
		retryConfig:    retry.DisruptionPageConfig(),
		userAgent:      RandomUserAgent(),
		maxBodySize:    fetcher.DefaultClientConfig().MaxBodySize,
		cacheBuster:    func() int { return 10000 + rand.IntN(90000) }, // #nosec G404
		logger:         logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger.Debug("page fetcher user agent selected", slog.String("user_agent", f.userAgent))
	return f
}

// UserAgent returns the User-Agent sent with every request.
func (f *PageFetcher) UserAgent() string { return f.userAgent }

// Fetch downloads pageURL with a fresh cache-buster. Failures are returned as
// *entity.FetchError.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*entity.Page, error) {
	target, err := withCacheBuster(pageURL, f.cacheBuster())
	if err != nil {
		return nil, &entity.FetchError{URL: pageURL, Cause: err}
	}

	start := time.Now()
	page, err := resilience.Call(ctx, f.circuitBreaker, f.retryConfig, func() (*entity.Page, error) {
		return f.doFetch(ctx, target)
	})
	metrics.RecordPageFetch(err == nil, time.Since(start))
	if err != nil {
		var fe *entity.FetchError
		if !errors.As(err, &fe) {
			err = &entity.FetchError{URL: target, Cause: err}
		}
		return nil, err
	}

	f.logger.Info("fetched disruption page",
		slog.String("url", target),
		slog.Int("bytes", len(page.Body)),
		slog.Duration("duration", time.Since(start)))
	return page, nil
}

func (f *PageFetcher) doFetch(ctx context.Context, target string) (*entity.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range navigationHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := fetcher.ReadBody(resp, 4096)
		return nil, &entity.FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Cause: &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status %s: %s", resp.Status, fetcher.Snippet(body)),
			},
		}
	}

	body, err := fetcher.ReadBody(resp, f.maxBodySize)
	if err != nil {
		return nil, err
	}

	return &entity.Page{
		URL:         target,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

// withCacheBuster sets the cache-buster parameter, keeping any other query.
func withCacheBuster(pageURL string, n int) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("page URL must be http(s): %q", pageURL)
	}
	q := u.Query()
	q.Set(CacheBusterParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
