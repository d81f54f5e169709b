package scraper

import (
	"context"
	"log/slog"

	"natrail-bot/internal/domain/entity"
)

// Extractor dispatches a page to the feed or HTML extractor by its content.
type Extractor struct {
	html *NotificationExtractor
	feed *FeedExtractor
}

// NewExtractor builds an Extractor for listings hosted at origin.
func NewExtractor(origin string, selectors Selectors, logger *slog.Logger) (*Extractor, error) {
	html, err := NewNotificationExtractor(origin, selectors, logger)
	if err != nil {
		return nil, err
	}
	feed, err := NewFeedExtractor(origin, logger)
	if err != nil {
		return nil, err
	}
	return &Extractor{html: html, feed: feed}, nil
}

// Extract implements the disruption extraction contract for either page kind.
func (e *Extractor) Extract(ctx context.Context, page *entity.Page) ([]*entity.Disruption, error) {
	if page.IsFeed() {
		return e.feed.Extract(ctx, page)
	}
	return e.html.Extract(ctx, page)
}
