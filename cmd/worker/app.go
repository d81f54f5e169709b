package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"natrail-bot/internal/config"
	"natrail-bot/internal/infra/adapter/persistence/jsonfile"
	"natrail-bot/internal/infra/adapter/persistence/postgres"
	"natrail-bot/internal/infra/adapter/persistence/sqlite"
	"natrail-bot/internal/infra/bluesky"
	"natrail-bot/internal/infra/condenser"
	"natrail-bot/internal/infra/db"
	"natrail-bot/internal/infra/fetcher"
	"natrail-bot/internal/infra/imagesearch"
	"natrail-bot/internal/infra/linkcard"
	"natrail-bot/internal/infra/scraper"
	"natrail-bot/internal/repository"
	"natrail-bot/internal/usecase/compose"
	"natrail-bot/internal/usecase/monitor"
	"natrail-bot/internal/usecase/publish"
)

// app holds the wired pipeline and what must be released on exit.
type app struct {
	monitor *monitor.Service
	db      *sql.DB
	logger  *slog.Logger
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", slog.Any("error", err))
		return err
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder monitor.CycleRecorder) (*app, error) {
	a := &app{logger: logger}

	repo, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	scrapeCfg := fetcher.DefaultClientConfig()
	scrapeCfg.Timeout = cfg.HTTP.FetchTimeout
	scrapeCfg.InsecureSkipVerify = cfg.HTTP.InsecureSkipVerify
	scrapeClient := fetcher.NewHTTPClient(scrapeCfg, logger)

	// The PDS may be self-hosted on a private network.
	apiCfg := fetcher.DefaultClientConfig()
	apiCfg.DenyPrivateIPs = false
	apiClient := fetcher.NewHTTPClient(apiCfg, logger)

	pages := scraper.NewPageFetcher(scrapeClient, logger)
	selectors := scraper.DefaultSelectors()
	if cfg.Source.ListItemSelector != "" {
		selectors.ListItem = cfg.Source.ListItemSelector
	}
	if cfg.Source.AnchorSelector != "" {
		selectors.Anchor = cfg.Source.AnchorSelector
	}
	extractor, err := scraper.NewExtractor(cfg.Source.Origin(), selectors, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	composer, err := newComposer(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	network := bluesky.NewClient(cfg.Bluesky.PDSURL, cfg.Bluesky.Handle, cfg.Bluesky.Password, apiClient, logger)
	cards := linkcard.NewResolver(scrapeClient, logger,
		linkcard.WithDefaultTitle(cfg.Enrich.CardTitle),
		linkcard.WithUserAgent(pages.UserAgent()))
	picker := imagesearch.NewPicker(scrapeClient, cfg.Enrich.FlickrAPIKey, logger,
		imagesearch.WithDefaultOperator(cfg.Enrich.DefaultOperator))

	publisher := publish.NewService(network, logger,
		publish.WithCardResolver(cards),
		publish.WithImagePicker(picker),
		publish.WithImageDownloader(picker),
		publish.WithDefaultImage(cfg.Enrich.DefaultImageURL),
		publish.WithCardTitle(cfg.Enrich.CardTitle),
		publish.WithMaxAttempts(cfg.Post.MaxAttempts),
		publish.WithRateLimitBackoff(cfg.Post.RateLimitBackoff),
		publish.WithDryRun(cfg.Post.DryRun))

	schedule, err := monitor.ParseSchedule(cfg.Post.Schedule)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Post.Timezone)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	a.monitor = monitor.NewService(cfg.Source.PageURL, pages, extractor, repo, composer, publisher, logger,
		monitor.WithPostDelay(cfg.Post.PostDelay),
		monitor.WithSchedule(schedule),
		monitor.WithLocation(loc),
		monitor.WithCycleRecorder(recorder))
	return a, nil
}

func (a *app) openStore(ctx context.Context, sc config.StoreConfig) (repository.DisruptionRepository, error) {
	switch sc.Driver {
	case config.StoreJSON:
		a.logger.Info("using JSON seen-set store", slog.String("path", sc.SeenFile))
		seen, err := jsonfile.Open(sc.SeenFile)
		if err != nil {
			return nil, err
		}
		return seen, nil
	case config.StoreSQLite, config.StorePostgres:
		database, err := db.Open(ctx, sc.Driver, sc.DSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.db = database
		if err := db.MigrateUp(ctx, database, sc.Driver, a.logger); err != nil {
			_ = a.Close()
			return nil, err
		}
		if sc.Driver == config.StorePostgres {
			return postgres.NewDisruptionRepo(database), nil
		}
		return sqlite.NewDisruptionRepo(database), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func newComposer(cfg *config.Config, logger *slog.Logger) (*compose.Composer, error) {
	mode, err := compose.ParseLinkMode(cfg.Post.LinkMode)
	if err != nil {
		return nil, err
	}

	var c compose.Condenser
	switch cfg.Post.Condenser {
	case condenser.MethodClaude:
		c = condenser.NewClaude(cfg.Enrich.AnthropicAPIKey, logger)
	case condenser.MethodOpenAI:
		c = condenser.NewOpenAI(cfg.Enrich.OpenAIAPIKey, logger)
	default:
		c = condenser.Truncate{}
	}

	return compose.NewComposer(compose.NewFormatter(nil, cfg.Post.Operators), logger,
		compose.WithCondenser(c),
		compose.WithLinkMode(mode)), nil
}
