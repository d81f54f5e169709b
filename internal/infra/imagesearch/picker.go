// Package imagesearch picks a thumbnail photo of the train operator named on
// a disruption detail page, using the Flickr photo search API.
package imagesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/infra/fetcher"
	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/resilience"
	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

const (
	// DefaultEndpoint is the Flickr REST endpoint.
	DefaultEndpoint = "https://api.flickr.com/services/rest/"
	// DefaultOperator is searched for when the page names no operator.
	DefaultOperator = "Merseyrail"
	// OperatorPathMarker identifies operator links on a disruption page.
	OperatorPathMarker = "/travel-information/operators/"

	searchResults  = 10
	maxPageSize    = 2 * 1024 * 1024
	maxImageSize   = 1000000 // Bluesky blob limit
	photoURLFormat = "https://live.staticflickr.com/%s/%s_%s.jpg"
)

// Picker finds operator photos.
type Picker struct {
	client          *http.Client
	apiKey          string
	endpoint        string
	defaultOperator string
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	denyPrivateIPs  bool
	pick            func(n int) int
	logger          *slog.Logger
}

// Option configures a Picker.
type Option func(*Picker)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Picker) { p.endpoint = endpoint }
}

// WithDefaultOperator overrides DefaultOperator.
func WithDefaultOperator(name string) Option {
	return func(p *Picker) {
		if name != "" {
			p.defaultOperator = name
		}
	}
}

// WithRetryConfig overrides the retry policy for search requests.
func WithRetryConfig(cfg retry.Config) Option {
	return func(p *Picker) { p.retryConfig = cfg }
}

// WithDenyPrivateIPs toggles the private address check on fetched links.
func WithDenyPrivateIPs(deny bool) Option {
	return func(p *Picker) { p.denyPrivateIPs = deny }
}

// NewPicker creates a Picker. An empty apiKey disables searching.
func NewPicker(client *http.Client, apiKey string, logger *slog.Logger, opts ...Option) *Picker {
	p := &Picker{
		client:          client,
		apiKey:          apiKey,
		endpoint:        DefaultEndpoint,
		defaultOperator: DefaultOperator,
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ImageSearchConfig()),
		retryConfig:     retry.ImageSearchConfig(),
		denyPrivateIPs:  true,
		pick:            rand.IntN, // #nosec G404 -- photo choice is not security sensitive
		logger:          logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PickImage returns the URL of a random photo of the operator named on the
// page at link. It returns entity.ErrNotConfigured without an API key and
// an empty URL when the search has no results.
func (p *Picker) PickImage(ctx context.Context, link string) (string, error) {
	if p.apiKey == "" {
		return "", entity.ErrNotConfigured
	}

	operator := p.Operator(ctx, link)
	imageURL, err := p.Search(ctx, operator+" Train photo")
	metrics.RecordEnrichment("image_search", err == nil)
	if err != nil {
		return "", err
	}
	if imageURL != "" {
		p.logger.Info("picked operator photo",
			slog.String("operator", operator),
			slog.String("image_url", imageURL))
	}
	return imageURL, nil
}

// Operator returns the slug of the first operator link on the page at link,
// or the default operator when the page cannot be read or has none.
func (p *Picker) Operator(ctx context.Context, link string) string {
	name, err := p.lookupOperator(ctx, link)
	if err != nil {
		p.logger.Warn("operator lookup failed, using default",
			slog.String("link", link),
			slog.String("operator", p.defaultOperator),
			slog.Any("error", err))
		return p.defaultOperator
	}
	if name == "" {
		p.logger.Debug("no operator link on page", slog.String("link", link))
		return p.defaultOperator
	}
	return name
}

func (p *Picker) lookupOperator(ctx context.Context, link string) (string, error) {
	body, err := p.fetchPage(ctx, link)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	var name string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		i := strings.Index(href, OperatorPathMarker)
		if i < 0 {
			return true
		}
		name = strings.ReplaceAll(href[i+len(OperatorPathMarker):], "/", "")
		return false
	})
	return name, nil
}

type searchResponse struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Photos  struct {
		Photo []photo `json:"photo"`
	} `json:"photos"`
}

type photo struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
	Server string `json:"server"`
}

// Search runs a photo search for text and returns one result at random.
func (p *Picker) Search(ctx context.Context, text string) (string, error) {
	if p.apiKey == "" {
		return "", entity.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("method", "flickr.photos.search")
	q.Set("api_key", p.apiKey)
	q.Set("text", text)
	q.Set("per_page", fmt.Sprint(searchResults))
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")
	target := p.endpoint + "?" + q.Encode()

	photos, err := resilience.Call(ctx, p.circuitBreaker, p.retryConfig, func() ([]photo, error) {
		body, _, err := p.do(ctx, target, p.endpoint, maxPageSize)
		if err != nil {
			return nil, err
		}
		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		if resp.Stat != "ok" {
			return nil, fmt.Errorf("photo search failed (code %d): %s", resp.Code, resp.Message)
		}
		return resp.Photos.Photo, nil
	})
	if err != nil {
		return "", err
	}
	if len(photos) == 0 {
		return "", nil
	}

	ph := photos[p.pick(len(photos))]
	return fmt.Sprintf(photoURLFormat, ph.Server, ph.ID, ph.Secret), nil
}

// Download fetches an image for upload as a post thumbnail and returns its
// bytes and MIME type.
func (p *Picker) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	if err := fetcher.ValidateURL(imageURL, p.denyPrivateIPs); err != nil {
		return nil, "", err
	}
	data, mime, err := p.do(ctx, imageURL, imageURL, maxImageSize)
	if err != nil {
		return nil, "", err
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (p *Picker) fetchPage(ctx context.Context, link string) ([]byte, error) {
	if err := fetcher.ValidateURL(link, p.denyPrivateIPs); err != nil {
		return nil, err
	}
	body, _, err := p.do(ctx, link, link, maxPageSize)
	return body, err
}

// do performs a GET. label names the request in errors so API keys in the
// query string stay out of logs.
func (p *Picker) do(ctx context.Context, target, label string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", fetcher.ErrInvalidURL, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = label
		}
		return nil, "", &entity.FetchError{URL: label, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := fetcher.ReadBody(resp, 4096)
		return nil, "", &entity.FetchError{
			URL:        label,
			StatusCode: resp.StatusCode,
			Cause:      &retry.HTTPError{StatusCode: resp.StatusCode, Message: fetcher.Snippet(body)},
		}
	}
	body, err := fetcher.ReadBody(resp, limit)
	if err != nil {
		return nil, "", &entity.FetchError{URL: label, StatusCode: resp.StatusCode, Cause: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}
