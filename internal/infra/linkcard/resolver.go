// Package linkcard resolves the preview card attached to disruption posts
// from the Open Graph metadata of the disruption detail page.
package linkcard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/fetcher"
	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/resilience"
	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

// DefaultTitle is used when the page has no usable title.
const DefaultTitle = "National Rail Disruptions"

const defaultMaxBodySize = 2 * 1024 * 1024

// Resolver fetches link preview metadata.
type Resolver struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	defaultTitle   string
	denyPrivateIPs bool
	maxBodySize    int64
	userAgent      string
	logger         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultTitle overrides DefaultTitle.
func WithDefaultTitle(title string) Option {
	return func(r *Resolver) {
		if title != "" {
			r.defaultTitle = title
		}
	}
}

// WithDenyPrivateIPs toggles the private address check on links.
func WithDenyPrivateIPs(deny bool) Option {
	return func(r *Resolver) { r.denyPrivateIPs = deny }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(r *Resolver) { r.retryConfig = cfg }
}

// WithUserAgent sets the User-Agent header sent with metadata requests.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) { r.userAgent = ua }
}

// NewResolver creates a Resolver using client for requests.
func NewResolver(client *http.Client, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.LinkPreviewConfig()),
		retryConfig:    retry.LinkPreviewConfig(),
		defaultTitle:   DefaultTitle,
		denyPrivateIPs: true,
		maxBodySize:    defaultMaxBodySize,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the card for uri. Missing metadata falls back to the
// default title and the given description, and failures are logged rather
// than returned, so the result is never nil.
func (r *Resolver) Resolve(ctx context.Context, uri, description string) *entity.LinkCard {
	card, err := r.Fetch(ctx, uri)
	metrics.RecordEnrichment("link_card", err == nil)
	if err != nil {
		r.logger.Warn("link card metadata unavailable, using defaults",
			slog.String("link", uri),
			slog.Any("error", err))
		card = &entity.LinkCard{URI: uri}
	}

	if card.Title == "" {
		card.Title = r.defaultTitle
	}
	if card.Description == "" {
		card.Description = description
	}
	return card
}

// Fetch downloads uri and reads its Open Graph tags. Fields the page does
// not provide are left empty.
func (r *Resolver) Fetch(ctx context.Context, uri string) (*entity.LinkCard, error) {
	if err := fetcher.ValidateURL(uri, r.denyPrivateIPs); err != nil {
		return nil, err
	}

	return resilience.Call(ctx, r.circuitBreaker, r.retryConfig, func() (*entity.LinkCard, error) {
		return r.doFetch(ctx, uri)
	})
}

func (r *Resolver) doFetch(ctx context.Context, uri string) (*entity.LinkCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fetcher.ErrInvalidURL, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &entity.FetchError{URL: uri, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := fetcher.ReadBody(resp, 4096)
		return nil, &entity.FetchError{
			URL:        uri,
			StatusCode: resp.StatusCode,
			Cause:      &retry.HTTPError{StatusCode: resp.StatusCode, Message: fetcher.Snippet(body)},
		}
	}

	body, err := fetcher.ReadBody(resp, r.maxBodySize)
	if err != nil {
		return nil, &entity.FetchError{URL: uri, StatusCode: resp.StatusCode, Cause: err}
	}

	base := resp.Request.URL
	if base == nil {
		base, _ = url.Parse(uri)
	}
	return parseCard(uri, base, body, r.logger)
}

// parseCard reads og:title, og:description and og:image. When the title or
// description tags are missing, readability's title and excerpt fill in.
func parseCard(uri string, base *url.URL, body []byte, logger *slog.Logger) (*entity.LinkCard, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	card := &entity.LinkCard{
		URI:         uri,
		Title:       ogContent(doc, "og:title"),
		Description: ogContent(doc, "og:description"),
	}
	if img := ogContent(doc, "og:image"); img != "" {
		card.ImageURL = absolute(base, img)
	}

	if card.Title == "" || card.Description == "" {
		article, err := readability.FromReader(io.NopCloser(bytes.NewReader(body)), base)
		if err != nil {
			logger.Debug("readability fallback failed", slog.String("link", uri), slog.Any("error", err))
			return card, nil
		}
		if card.Title == "" {
			card.Title = strings.TrimSpace(article.Title)
		}
		if card.Description == "" {
			card.Description = strings.TrimSpace(article.Excerpt)
		}
	}
	return card, nil
}

func ogContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name=%q]`, property)).First()
	}
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

func absolute(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
