package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"natrail-bot/internal/domain/entity"
)

// FeedExtractor reads disruptions from an RSS or Atom document, for
// deployments pointed at an incident feed instead of the HTML listing.
type FeedExtractor struct {
	origin *url.URL
	now    func() time.Time
	logger *slog.Logger
}

// NewFeedExtractor creates a FeedExtractor that qualifies relative item links
// against origin.
func NewFeedExtractor(origin string, logger *slog.Logger) (*FeedExtractor, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: origin must be an absolute URL, got %q", entity.ErrInvalidInput, origin)
	}
	return &FeedExtractor{origin: u, now: time.Now, logger: logger}, nil
}

// Extract maps feed items to disruptions. The item title is the description,
// falling back to the item description.
func (e *FeedExtractor) Extract(_ context.Context, page *entity.Page) ([]*entity.Disruption, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	observed := e.now()
	seen := make(map[entity.DisruptionKey]struct{})
	out := make([]*entity.Disruption, 0, len(feed.Items))

	for i, it := range feed.Items {
		description := strings.TrimSpace(it.Title)
		if description == "" {
			description = strings.TrimSpace(it.Description)
		}
		if description == "" {
			description = entity.NoDescription
		}

		link := strings.TrimSpace(it.Link)
		if link == "" {
			e.logger.Debug("skipping feed item without link", slog.Int("index", i))
			continue
		}
		if ref, err := url.Parse(link); err == nil {
			link = e.origin.ResolveReference(ref).String()
		}

		d := &entity.Disruption{Description: description, Link: link, ObservedAt: observed}
		if _, dup := seen[d.Key()]; dup {
			continue
		}
		seen[d.Key()] = struct{}{}
		out = append(out, d)
	}

	return out, nil
}
