// Package monitor runs the fetch, dedup and publish cycle on a schedule.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/observability/metrics"
	"natrail-bot/internal/observability/tracing"
	"natrail-bot/internal/repository"
	"natrail-bot/internal/usecase/compose"
)

// Defaults for pacing.
const (
	DefaultPostDelay = 2 * time.Minute
	DefaultSchedule  = "@every 20m"
)

// PageFetcher downloads the disruption listing.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*entity.Page, error)
}

// Extractor turns a listing into disruptions.
type Extractor interface {
	Extract(ctx context.Context, page *entity.Page) ([]*entity.Disruption, error)
}

// Composer builds the post for a disruption.
type Composer interface {
	Compose(ctx context.Context, d *entity.Disruption) (*compose.Post, error)
}

// Publisher sends a post.
type Publisher interface {
	Publish(ctx context.Context, d *entity.Disruption, post *compose.Post) (*entity.PublishResult, error)
}

// CycleRecorder receives per-cycle outcomes.
type CycleRecorder interface {
	RecordCycle(status string, duration time.Duration, posted int)
}

// CycleStats summarises one cycle.
type CycleStats struct {
	Scraped    int
	New        int
	Duplicates int
	Posted     int
	Failed     int
	Stored     repository.DisruptionStats
}

// Service is the pipeline orchestrator. It processes disruptions strictly
// one at a time.
type Service struct {
	pageURL   string
	fetcher   PageFetcher
	extractor Extractor
	repo      repository.DisruptionRepository
	composer  Composer
	publisher Publisher
	postEvery rate.Limit
	schedule  cron.Schedule
	location  *time.Location
	recorder  CycleRecorder
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPostDelay sets the pause after each publish attempt, counted from the
// moment the attempt returns. Zero or less disables the pause.
func WithPostDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.postEvery = rate.Every(d)
		} else {
			s.postEvery = rate.Inf
		}
	}
}

// WithSchedule sets when cycles start.
func WithSchedule(sched cron.Schedule) Option {
	return func(s *Service) { s.schedule = sched }
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithCycleRecorder reports cycle outcomes.
func WithCycleRecorder(r CycleRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a Service for the listing at pageURL.
func NewService(pageURL string, fetcher PageFetcher, extractor Extractor, repo repository.DisruptionRepository,
	composer Composer, publisher Publisher, logger *slog.Logger, opts ...Option) *Service {
	defaultSchedule, _ := ParseSchedule(DefaultSchedule)
	s := &Service{
		pageURL:   pageURL,
		fetcher:   fetcher,
		extractor: extractor,
		repo:      repo,
		composer:  composer,
		publisher: publisher,
		postEvery: rate.Every(DefaultPostDelay),
		schedule:  defaultSchedule,
		location:  time.Local,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 20m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := p.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", entity.ErrInvalidInput, spec, err)
	}
	return sched, nil
}

// Run executes cycles until ctx is done. Only persistence failures end it
// early; every other error is logged and the next cycle runs on schedule.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting disruption monitor", slog.String("page_url", s.pageURL))

	for {
		start := s.now()
		stats, err := s.safeCycle(ctx)
		status := "success"
		if err != nil {
			status = "failure"
		}
		if s.recorder != nil {
			posted := 0
			if stats != nil {
				posted = stats.Posted
			}
			s.recorder.RecordCycle(status, s.now().Sub(start), posted)
		}

		if err != nil {
			switch {
			case entity.IsPersistence(err):
				s.logger.Error("dedup store failure, stopping", slog.Any("error", err))
				return err
			case ctx.Err() != nil:
				s.logger.Info("monitor stopped", slog.String("reason", ctx.Err().Error()))
				return nil
			default:
				s.logger.Error("cycle failed", slog.Any("error", err))
			}
		}

		next := s.schedule.Next(s.now().In(s.location))
		wait := time.Until(next)
		s.logger.Info("sleeping until next cycle",
			slog.Time("next_run", next),
			slog.Duration("wait", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			s.logger.Info("monitor stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		case <-t.C:
		}
	}
}

func (s *Service) safeCycle(ctx context.Context) (stats *CycleStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in cycle",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic in cycle: %v", r)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle performs one fetch, dedup and publish pass. A fetch or parse
// failure yields an empty cycle. A persistence failure is returned at once.
func (s *Service) RunCycle(ctx context.Context) (*CycleStats, error) {
	ctx, span := tracing.StartSpan(ctx, "monitor.RunCycle", attribute.String("page.url", s.pageURL))
	defer span.End()

	stats := &CycleStats{}
	records := s.scrape(ctx)
	stats.Scraped = len(records)

	for _, d := range records {
		if err := d.Validate(); err != nil {
			s.logger.Warn("skipping invalid disruption", slog.String("link", d.Link), slog.Any("error", err))
			continue
		}
		inserted, err := s.recordSeen(ctx, d)
		if err != nil {
			tracing.RecordError(span, err)
			return stats, err
		}
		if inserted {
			stats.New++
		} else {
			stats.Duplicates++
		}
	}
	metrics.RecordScrape(stats.Scraped, stats.New, stats.Duplicates)

	pending, err := s.repo.Unposted(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return stats, err
	}
	if len(pending) == 0 {
		s.logger.Info("no new disruptions to post")
	}

	for i, d := range pending {
		ok, err := s.post(ctx, d)
		if err != nil {
			tracing.RecordError(span, err)
			return stats, err
		}
		if ok {
			stats.Posted++
		} else {
			stats.Failed++
		}
		if i < len(pending)-1 {
			if err := s.pause(ctx); err != nil {
				return stats, fmt.Errorf("waiting to post: %w", err)
			}
		}
	}

	stored, err := s.repo.Stats(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return stats, err
	}
	stats.Stored = stored
	metrics.UpdateStoredDisruptions(stored.Total, stored.Posted)

	span.SetAttributes(
		attribute.Int("cycle.scraped", stats.Scraped),
		attribute.Int("cycle.new", stats.New),
		attribute.Int("cycle.posted", stats.Posted),
		attribute.Int("cycle.failed", stats.Failed))
	s.logger.Info("cycle complete",
		slog.Int("scraped", stats.Scraped),
		slog.Int("new", stats.New),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("posted", stats.Posted),
		slog.Int("failed", stats.Failed),
		slog.Int64("stored_total", stored.Total),
		slog.Int64("stored_posted", stored.Posted))
	return stats, nil
}

// scrape returns the disruptions on the listing, or none when the page
// cannot be fetched or parsed.
func (s *Service) scrape(ctx context.Context) []*entity.Disruption {
	page, err := s.fetcher.Fetch(ctx, s.pageURL)
	if err != nil {
		attrs := []any{slog.String("url", s.pageURL), slog.Any("error", err)}
		var fe *entity.FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			attrs = append(attrs, slog.Int("status", fe.StatusCode))
		}
		s.logger.Warn("disruption page fetch failed, skipping cycle", attrs...)
		return nil
	}

	records, err := s.extractor.Extract(ctx, page)
	switch {
	case errors.Is(err, entity.ErrMarkerNotFound):
		s.logger.Warn("disruption list not found on page, markup may have changed",
			slog.String("url", page.URL),
			slog.Any("error", err))
		return nil
	case err != nil:
		s.logger.Warn("disruption page could not be parsed",
			slog.String("url", page.URL),
			slog.Any("error", err))
		return nil
	}
	s.logger.Info("scraped disruptions", slog.Int("count", len(records)))
	return records
}

func (s *Service) recordSeen(ctx context.Context, d *entity.Disruption) (bool, error) {
	start := time.Now()
	inserted, err := s.repo.RecordSeen(ctx, d)
	metrics.RecordStoreOperation("record_seen", time.Since(start))
	if err != nil {
		return false, err
	}
	if inserted {
		s.logger.Info("new disruption",
			slog.String("description", d.Description),
			slog.String("link", d.Link))
	}
	return inserted, nil
}

// pause blocks for one post delay starting now. The limiter starts drained,
// so Wait always blocks for the full delay.
func (s *Service) pause(ctx context.Context) error {
	pacer := rate.NewLimiter(s.postEvery, 1)
	pacer.Allow()
	return pacer.Wait(ctx)
}

// post composes and publishes d and marks it posted on confirmed success.
// Only persistence and cancellation errors are returned.
func (s *Service) post(ctx context.Context, d *entity.Disruption) (bool, error) {
	post, err := s.composer.Compose(ctx, d)
	if err != nil {
		s.logger.Error("could not compose post", slog.String("link", d.Link), slog.Any("error", err))
		return false, nil
	}
	s.logger.Info("posting disruption", slog.String("text", post.Text), slog.String("link", d.Link))

	res, err := s.publisher.Publish(ctx, d, post)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		s.logger.Error("publish error", slog.String("link", d.Link), slog.Any("error", err))
		return false, nil
	}
	if !res.Succeeded() {
		s.logger.Error("disruption not posted",
			slog.String("link", d.Link),
			slog.String("state", res.State.String()),
			slog.Int("attempts", res.Attempts),
			slog.Any("error", res.Err))
		return false, nil
	}
	if res.DryRun {
		return true, nil
	}

	start := time.Now()
	matched, err := s.repo.MarkPosted(ctx, d.Key())
	metrics.RecordStoreOperation("mark_posted", time.Since(start))
	if err != nil {
		return true, err
	}
	if !matched {
		s.logger.Warn("posted disruption had no stored record to mark",
			slog.String("description", d.Description),
			slog.String("link", d.Link))
	}
	return true, nil
}
