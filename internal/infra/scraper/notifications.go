package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/observability/metrics"
)

// National Rail listing defaults. The class names are generated by the site's
// CSS-in-JS build and change without notice.
const (
	DefaultOrigin           = "https://www.nationalrail.co.uk"
	DefaultPageURL          = DefaultOrigin + "/status-and-disruptions/"
	DefaultListItemSelector = "li.styled__StyledNotificationListItem-sc-nisfz3-3"
	DefaultAnchorSelector   = "a.styled__StyledNotificationBox-sc-2fuu9j-2"
)

// Selectors locate notifications in the listing markup.
type Selectors struct {
	ListItem string `yaml:"list_item"`
	Anchor   string `yaml:"anchor"`
}

// DefaultSelectors returns the selectors for the current listing markup.
func DefaultSelectors() Selectors {
	return Selectors{ListItem: DefaultListItemSelector, Anchor: DefaultAnchorSelector}
}

// NotificationExtractor reads disruptions from the HTML listing.
type NotificationExtractor struct {
	origin    *url.URL
	selectors Selectors
	now       func() time.Time
	logger    *slog.Logger
}

// NewNotificationExtractor creates an extractor that qualifies relative links
// against origin.
func NewNotificationExtractor(origin string, selectors Selectors, logger *slog.Logger) (*NotificationExtractor, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: origin must be an absolute URL, got %q", entity.ErrInvalidInput, origin)
	}
	if selectors.ListItem == "" || selectors.Anchor == "" {
		return nil, fmt.Errorf("%w: list item and anchor selectors are required", entity.ErrInvalidInput)
	}
	return &NotificationExtractor{origin: u, selectors: selectors, now: time.Now, logger: logger}, nil
}

// Extract returns the notifications in document order without duplicates.
// A page with no list items yields entity.ErrMarkerNotFound.
func (e *NotificationExtractor) Extract(_ context.Context, page *entity.Page) ([]*entity.Disruption, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	items := doc.Find(e.selectors.ListItem)
	if items.Length() == 0 {
		metrics.RecordListMarkerMissing()
		return nil, fmt.Errorf("%w: selector %q matched nothing on %s", entity.ErrMarkerNotFound, e.selectors.ListItem, page.URL)
	}

	observed := e.now()
	seen := make(map[entity.DisruptionKey]struct{})
	var out []*entity.Disruption

	items.Each(func(i int, item *goquery.Selection) {
		anchor := item.Find(e.selectors.Anchor).First()
		if anchor.Length() == 0 {
			e.logger.Debug("skipping list item without notification anchor", slog.Int("index", i))
			return
		}

		description := strings.TrimSpace(anchor.AttrOr("aria-label", ""))
		if description == "" {
			description = entity.NoDescription
		}
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if href == "" {
			href = "#"
		}

		d := &entity.Disruption{
			Description: description,
			Link:        e.absolute(href),
			ObservedAt:  observed,
		}
		if _, dup := seen[d.Key()]; dup {
			return
		}
		seen[d.Key()] = struct{}{}
		out = append(out, d)
	})

	return out, nil
}

func (e *NotificationExtractor) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimRight(e.origin.String(), "/") + "/" + strings.TrimLeft(href, "/")
	}
	return e.origin.ResolveReference(ref).String()
}
