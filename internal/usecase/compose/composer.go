package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/utils/text"
)

// MaxPostRunes is the character limit of a post on the social network.
const MaxPostRunes = 300

const ellipsis = "…"

// LinkMode selects how the disruption link accompanies the post.
type LinkMode string

const (
	// LinkEmbed attaches the link as an external preview card.
	LinkEmbed LinkMode = "embed"
	// LinkInline appends the link to the post text as a link facet.
	LinkInline LinkMode = "inline"
)

// ParseLinkMode converts a configuration value to a LinkMode.
func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(strings.ToLower(strings.TrimSpace(s))) {
	case LinkEmbed, "":
		return LinkEmbed, nil
	case LinkInline:
		return LinkInline, nil
	default:
		return "", fmt.Errorf("%w: unknown link mode %q (expected embed or inline)", entity.ErrInvalidInput, s)
	}
}

// Condenser shortens text that does not fit in a post.
type Condenser interface {
	Condense(ctx context.Context, text string, limit int) (string, error)
}

// Post is the text of one disruption post with its annotations.
type Post struct {
	Text  string
	Spans []entity.Span
	// Link is the disruption detail page.
	Link string
	// Embed is true when Link should be attached as a preview card.
	Embed bool
	// Condensed is true when the description was shortened to fit.
	Condensed bool
}

// Composer builds Posts from disruptions.
type Composer struct {
	formatter *Formatter
	condenser Condenser
	mode      LinkMode
	limit     int
	logger    *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithCondenser sets the condenser used for over-length descriptions.
// Without one, descriptions are truncated.
func WithCondenser(c Condenser) Option {
	return func(cp *Composer) { cp.condenser = c }
}

// WithLinkMode sets how the link is carried.
func WithLinkMode(mode LinkMode) Option {
	return func(cp *Composer) { cp.mode = mode }
}

// WithLimit overrides MaxPostRunes.
func WithLimit(limit int) Option {
	return func(cp *Composer) { cp.limit = limit }
}

// NewComposer creates a Composer.
func NewComposer(formatter *Formatter, logger *slog.Logger, opts ...Option) *Composer {
	c := &Composer{
		formatter: formatter,
		mode:      LinkEmbed,
		limit:     MaxPostRunes,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose formats the description, fits it to the post limit and annotates it.
// Spans are computed on the final text so offsets always match what is sent.
func (c *Composer) Compose(ctx context.Context, d *entity.Disruption) (*Post, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil disruption", entity.ErrInvalidInput)
	}

	body := c.formatter.Format(d.Description)
	tail := "\n"
	if c.mode == LinkInline {
		tail = "\n" + d.Link
	}

	condensed := false
	budget := c.limit - text.CountRunes(tail)
	if text.CountRunes(body) > budget {
		body = c.fit(ctx, body, budget, d.Link)
		condensed = true
	}

	msg := body + tail
	return &Post{
		Text:      msg,
		Spans:     text.Annotate(msg),
		Link:      d.Link,
		Embed:     c.mode == LinkEmbed,
		Condensed: condensed,
	}, nil
}

func (c *Composer) fit(ctx context.Context, body string, budget int, link string) string {
	if budget <= 0 {
		return ""
	}
	if c.condenser != nil {
		short, err := c.condenser.Condense(ctx, body, budget)
		switch {
		case err != nil:
			c.logger.Warn("condense failed, truncating",
				slog.String("link", link),
				slog.Any("error", err))
		case strings.TrimSpace(short) == "":
			c.logger.Warn("condenser returned empty text, truncating",
				slog.String("link", link))
		default:
			body = strings.TrimSpace(short)
		}
	}
	return text.TruncateRunes(body, budget, ellipsis)
}
