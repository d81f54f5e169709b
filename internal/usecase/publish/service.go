// Package publish sends composed disruption posts to the social network.
//
// One Publish call walks the state machine
//
//	Idle -> Authenticating -> BuildingPayload -> Sending -> {Succeeded, RateLimited, Failed}
//
// where RateLimited returns to Authenticating after a fixed backoff until the
// attempt budget is spent. Any other error ends in Failed without a retry.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/observability/tracing"
	"natrail-bot/internal/usecase/compose"
)

// Defaults for the retry budget.
const (
	DefaultMaxAttempts      = 3
	DefaultRateLimitBackoff = 120 * time.Second
	DefaultCardTitle        = "National Rail Disruptions"
)

// Outcome labels beyond the terminal state names.
const (
	OutcomeRateLimited = "rate_limited"
	OutcomeDryRun      = "dry_run"
)

// Network is the authenticated social network client.
type Network interface {
	Login(ctx context.Context) error
	Upload(ctx context.Context, data []byte, mimeType string) (*entity.BlobRef, error)
	Send(ctx context.Context, draft *entity.PostDraft) (entity.PostRef, error)
}

// CardResolver supplies link preview metadata. Resolve never fails; it
// falls back to defaults.
type CardResolver interface {
	Resolve(ctx context.Context, uri, description string) *entity.LinkCard
}

// ImagePicker suggests a thumbnail URL for a disruption link.
type ImagePicker interface {
	PickImage(ctx context.Context, link string) (string, error)
}

// ImageDownloader fetches thumbnail bytes.
type ImageDownloader interface {
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Service publishes posts.
type Service struct {
	network      Network
	cards        CardResolver
	images       ImagePicker
	downloader   ImageDownloader
	defaultImage string
	cardTitle    string
	maxAttempts  int
	backoff      time.Duration
	sleep        Sleeper
	now          func() time.Time
	dryRun       bool
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCardResolver enables link preview metadata lookups.
func WithCardResolver(r CardResolver) Option {
	return func(s *Service) { s.cards = r }
}

// WithImagePicker enables operator photo thumbnails.
func WithImagePicker(p ImagePicker) Option {
	return func(s *Service) { s.images = p }
}

// WithImageDownloader sets how thumbnail images are fetched.
func WithImageDownloader(d ImageDownloader) Option {
	return func(s *Service) { s.downloader = d }
}

// WithDefaultImage sets the thumbnail used when no other image is found.
func WithDefaultImage(url string) Option {
	return func(s *Service) { s.defaultImage = url }
}

// WithCardTitle sets the card title used when the page has none and no
// resolver is configured.
func WithCardTitle(title string) Option {
	return func(s *Service) {
		if title != "" {
			s.cardTitle = title
		}
	}
}

// WithMaxAttempts sets the attempt budget for rate-limited publishes.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRateLimitBackoff sets the fixed delay after a rate-limited attempt.
func WithRateLimitBackoff(d time.Duration) Option {
	return func(s *Service) { s.backoff = d }
}

// WithSleeper replaces the backoff wait.
func WithSleeper(fn Sleeper) Option {
	return func(s *Service) { s.sleep = fn }
}

// WithDryRun builds payloads and logs them without sending.
func WithDryRun(dry bool) Option {
	return func(s *Service) { s.dryRun = dry }
}

// NewService creates a Service.
func NewService(network Network, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		network:     network,
		cardTitle:   DefaultCardTitle,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRateLimitBackoff,
		sleep:       sleepContext,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish sends post for d. Publishing failures are reported in the result;
// the returned error is non-nil only for invalid input or cancellation.
func (s *Service) Publish(ctx context.Context, d *entity.Disruption, post *compose.Post) (*entity.PublishResult, error) {
	if d == nil || post == nil {
		return nil, fmt.Errorf("%w: nil disruption or post", entity.ErrInvalidInput)
	}

	requestID := uuid.New().String()
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("link", d.Link))

	ctx, span := tracing.StartSpan(ctx, "publish.Publish",
		attribute.String("request_id", requestID),
		attribute.String("disruption.link", d.Link))
	defer span.End()

	draft := &entity.PostDraft{Text: post.Text, Spans: post.Spans, CreatedAt: s.now()}
	var thumb []byte
	var thumbMime string
	if post.Embed {
		draft.Card = s.card(ctx, d)
		thumb, thumbMime = s.thumbnail(ctx, logger, d.Link, draft.Card)
	}

	if s.dryRun {
		logger.Info("dry run: post not sent",
			slog.String("text", draft.Text),
			slog.Int("facets", len(draft.Spans)),
			slog.Bool("card", draft.Card != nil),
			slog.Int("thumb_bytes", len(thumb)))
		metrics.RecordPublish(OutcomeDryRun, 0)
		return &entity.PublishResult{State: entity.StateSucceeded, DryRun: true}, nil
	}

	res, err := s.run(ctx, logger, draft, thumb, thumbMime)

	span.SetAttributes(
		attribute.String("publish.state", res.State.String()),
		attribute.Int("publish.attempts", res.Attempts))
	tracing.RecordError(span, res.Err)

	outcome := res.State.String()
	if res.State == entity.StateFailed && entity.IsRateLimit(res.Err) {
		outcome = OutcomeRateLimited
	}
	metrics.RecordPublish(outcome, res.Attempts)
	return res, err
}

// run drives the attempt loop.
func (s *Service) run(ctx context.Context, logger *slog.Logger, draft *entity.PostDraft, thumb []byte, mime string) (*entity.PublishResult, error) {
	res := &entity.PublishResult{State: entity.StateIdle}
	thumbTried := false

	for res.Attempts < s.maxAttempts {
		res.Attempts++
		attempt := slog.Int("attempt", res.Attempts)

		res.State = entity.StateAuthenticating
		if err := s.network.Login(ctx); err != nil {
			if s.rateLimited(res, err) {
				if serr := s.backoffOrFail(ctx, logger, res, attempt); serr != nil {
					return res, serr
				}
				continue
			}
			return s.fail(logger, res, err, "authentication failed", attempt), nil
		}

		res.State = entity.StateBuildingPayload
		if draft.Card != nil && len(thumb) > 0 && !thumbTried {
			thumbTried = true
			blob, err := s.network.Upload(ctx, thumb, mime)
			if err != nil {
				logger.Warn("thumbnail upload failed, posting without image", attempt, slog.Any("error", err))
			} else {
				draft.Thumb = blob
			}
		}

		res.State = entity.StateSending
		logger.Debug("sending post", attempt, slog.String("text", draft.Text))
		ref, err := s.network.Send(ctx, draft)
		if err == nil {
			res.State = entity.StateSucceeded
			res.Ref = ref
			res.Err = nil
			logger.Info("posted disruption", attempt, slog.String("uri", ref.URI), slog.String("cid", ref.CID))
			return res, nil
		}
		if s.rateLimited(res, err) {
			if serr := s.backoffOrFail(ctx, logger, res, attempt); serr != nil {
				return res, serr
			}
			continue
		}
		return s.fail(logger, res, err, "post failed", attempt), nil
	}

	res.State = entity.StateFailed
	logger.Error("post failed after all attempts",
		slog.Int("max_attempts", s.maxAttempts),
		slog.Any("error", res.Err))
	return res, nil
}

func (s *Service) rateLimited(res *entity.PublishResult, err error) bool {
	if !entity.IsRateLimit(err) {
		return false
	}
	res.State = entity.StateRateLimited
	res.Err = err
	return true
}

// backoffOrFail waits the fixed backoff when attempts remain. It returns an
// error only when ctx ends during the wait.
func (s *Service) backoffOrFail(ctx context.Context, logger *slog.Logger, res *entity.PublishResult, attempt slog.Attr) error {
	if res.Attempts >= s.maxAttempts {
		return nil
	}
	logger.Warn("rate limited, backing off",
		attempt,
		slog.Int("max_attempts", s.maxAttempts),
		slog.Duration("backoff", s.backoff),
		slog.Any("error", res.Err))
	if err := s.sleep(ctx, s.backoff); err != nil {
		res.State = entity.StateFailed
		res.Err = err
		return fmt.Errorf("publish backoff interrupted: %w", err)
	}
	return nil
}

func (s *Service) fail(logger *slog.Logger, res *entity.PublishResult, err error, msg string, attempt slog.Attr) *entity.PublishResult {
	res.State = entity.StateFailed
	res.Err = err

	attrs := []any{attempt, slog.Any("error", err)}
	var me *entity.MalformedResponseError
	if errors.As(err, &me) {
		attrs = append(attrs, slog.String("response", me.Snippet))
	}
	logger.Error(msg, attrs...)
	return res
}

func (s *Service) card(ctx context.Context, d *entity.Disruption) *entity.LinkCard {
	if s.cards != nil {
		return s.cards.Resolve(ctx, d.Link, d.Description)
	}
	return &entity.LinkCard{URI: d.Link, Title: s.cardTitle, Description: d.Description}
}

// thumbnail tries the operator photo, then the card's og:image, then the
// default image. No image is not an error.
func (s *Service) thumbnail(ctx context.Context, logger *slog.Logger, link string, card *entity.LinkCard) ([]byte, string) {
	if s.downloader == nil {
		return nil, ""
	}

	var candidates []string
	if s.images != nil {
		u, err := s.images.PickImage(ctx, link)
		switch {
		case errors.Is(err, entity.ErrNotConfigured):
			// search disabled
		case err != nil:
			logger.Warn("image search failed", slog.Any("error", err))
		case u != "":
			candidates = append(candidates, u)
		}
	}
	if card != nil && card.ImageURL != "" {
		candidates = append(candidates, card.ImageURL)
	}
	if s.defaultImage != "" {
		candidates = append(candidates, s.defaultImage)
	}

	for _, u := range candidates {
		data, mime, err := s.downloader.Download(ctx, u)
		metrics.RecordEnrichment("thumbnail", err == nil)
		if err != nil {
			logger.Warn("thumbnail download failed", slog.String("image_url", u), slog.Any("error", err))
			continue
		}
		return data, mime
	}
	return nil, ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
