// Package config assembles the worker configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. the YAML file named by CONFIG_FILE (non-secret tuning only)
//  3. environment variables, including those loaded from ENV_FILE or
//     .env.local and .env
//
// Environment values that fail validation fall back to the previous value
// with a warning; Validate reports the settings the worker cannot run without.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	envconfig "natrail-bot/internal/pkg/config"
)

const (
	StoreSQLite   = "sqlite3"
	StorePostgres = "pgx"
	StoreJSON     = "json"

	DefaultPageURL   = "https://www.nationalrail.co.uk/status-and-disruptions/"
	DefaultPDSURL    = "https://bsky.social"
	DefaultCardTitle = "National Rail Disruptions"
	DefaultOperator  = "Merseyrail"
)

// Config is the complete worker configuration.
type Config struct {
	Bluesky BlueskyConfig
	Source  SourceConfig
	Store   StoreConfig
	Post    PostConfig
	Enrich  EnrichConfig
	HTTP    HTTPConfig
	Log     LogConfig

	MetricsPort int
	HealthPort  int
}

// BlueskyConfig holds the account the bot posts as.
type BlueskyConfig struct {
	Handle   string
	Password string
	PDSURL   string
}

// SourceConfig locates the disruption listing.
type SourceConfig struct {
	PageURL          string `yaml:"page_url"`
	ListItemSelector string `yaml:"list_item_selector"`
	AnchorSelector   string `yaml:"anchor_selector"`
}

// Origin returns scheme://host of PageURL.
func (s SourceConfig) Origin() string {
	u, err := url.Parse(s.PageURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// StoreConfig selects the dedup store.
type StoreConfig struct {
	Driver   string
	DSN      string
	SeenFile string
}

// PostConfig controls scheduling and publishing.
type PostConfig struct {
	Schedule         string
	Timezone         string
	PostDelay        time.Duration
	RateLimitBackoff time.Duration
	MaxAttempts      int
	LinkMode         string
	Condenser        string
	Operators        []string
	DryRun           bool
}

// EnrichConfig configures link cards and thumbnails.
type EnrichConfig struct {
	CardTitle       string
	DefaultImageURL string
	DefaultOperator string
	FlickrAPIKey    string
	// FlickrAPISecret is accepted for compatibility; photo search is unsigned.
	FlickrAPISecret string
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// HTTPConfig applies to outbound scraping requests.
type HTTPConfig struct {
	FetchTimeout       time.Duration
	InsecureSkipVerify bool
}

// LogConfig mirrors the logging options.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// fileConfig is the shape of the CONFIG_FILE document.
type fileConfig struct {
	Source          SourceConfig `yaml:"source"`
	Operators       []string     `yaml:"operators"`
	DefaultOperator string       `yaml:"default_operator"`
	CardTitle       string       `yaml:"card_title"`
	DefaultImageURL string       `yaml:"default_image_url"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Bluesky: BlueskyConfig{PDSURL: DefaultPDSURL},
		Source:  SourceConfig{PageURL: DefaultPageURL},
		Store: StoreConfig{
			Driver:   StoreSQLite,
			DSN:      "disruptions.db",
			SeenFile: "seen_disruptions.json",
		},
		Post: PostConfig{
			Schedule:         "@every 20m",
			Timezone:         "Europe/London",
			PostDelay:        2 * time.Minute,
			RateLimitBackoff: 120 * time.Second,
			MaxAttempts:      3,
			LinkMode:         "embed",
			Condenser:        "truncate",
			Operators:        []string{"Northern", "Merseyrail"},
		},
		Enrich: EnrichConfig{
			CardTitle:       DefaultCardTitle,
			DefaultOperator: DefaultOperator,
		},
		HTTP:        HTTPConfig{FetchTimeout: 30 * time.Second},
		Log:         LogConfig{Level: "info", Format: "json"},
		MetricsPort: 9090,
		HealthPort:  9091,
	}
}

// LoadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Variables already present in the environment are never overwritten.
func LoadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration. metrics may be nil.
func Load(logger *slog.Logger, metrics *envconfig.ConfigMetrics) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	l := &loader{logger: logger, metrics: metrics}
	l.apply(&cfg)

	if metrics != nil {
		metrics.SetFallbackActive(l.fallback)
		metrics.RecordLoadTimestamp()
	}
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Source.PageURL != "" {
		c.Source.PageURL = fc.Source.PageURL
	}
	if fc.Source.ListItemSelector != "" {
		c.Source.ListItemSelector = fc.Source.ListItemSelector
	}
	if fc.Source.AnchorSelector != "" {
		c.Source.AnchorSelector = fc.Source.AnchorSelector
	}
	if len(fc.Operators) > 0 {
		c.Post.Operators = fc.Operators
	}
	if fc.DefaultOperator != "" {
		c.Enrich.DefaultOperator = fc.DefaultOperator
	}
	if fc.CardTitle != "" {
		c.Enrich.CardTitle = fc.CardTitle
	}
	if fc.DefaultImageURL != "" {
		c.Enrich.DefaultImageURL = fc.DefaultImageURL
	}
	return nil
}

type loader struct {
	logger   *slog.Logger
	metrics  *envconfig.ConfigMetrics
	fallback bool
}

func (l *loader) apply(cfg *Config) {
	cfg.Bluesky.Handle = envconfig.LoadEnvString("BLUESKY_HANDLE", cfg.Bluesky.Handle)
	cfg.Bluesky.Password = envconfig.LoadEnvString("BLUESKY_PASSWORD", cfg.Bluesky.Password)
	cfg.Bluesky.PDSURL = envconfig.LoadEnvString("BLUESKY_PDS_URL", cfg.Bluesky.PDSURL)

	cfg.Source.PageURL = envconfig.LoadEnvString("DISRUPTION_PAGE_URL", cfg.Source.PageURL)

	cfg.Store.Driver = resolve(l, "store_driver",
		envconfig.LoadEnvWithFallback("STORE_DRIVER", cfg.Store.Driver, oneOf(StoreSQLite, StorePostgres, StoreJSON)))
	cfg.Store.DSN = envconfig.LoadEnvString("STORE_DSN", cfg.Store.DSN)
	cfg.Store.SeenFile = envconfig.LoadEnvString("SEEN_FILE", cfg.Store.SeenFile)

	cfg.Post.Schedule = resolve(l, "cycle_schedule",
		envconfig.LoadEnvWithFallback("CYCLE_SCHEDULE", cfg.Post.Schedule, envconfig.ValidateCronSchedule))
	cfg.Post.Timezone = resolve(l, "timezone",
		envconfig.LoadEnvWithFallback("CYCLE_TIMEZONE", cfg.Post.Timezone, envconfig.ValidateTimezone))
	cfg.Post.PostDelay = resolve(l, "post_delay",
		envconfig.LoadEnvDuration("POST_DELAY", cfg.Post.PostDelay, envconfig.DurationBetween(10*time.Second, 10*time.Minute)))
	cfg.Post.RateLimitBackoff = resolve(l, "rate_limit_backoff",
		envconfig.LoadEnvDuration("RATE_LIMIT_BACKOFF", cfg.Post.RateLimitBackoff, envconfig.DurationBetween(time.Second, 30*time.Minute)))
	cfg.Post.MaxAttempts = resolve(l, "publish_max_attempts",
		envconfig.LoadEnvInt("PUBLISH_MAX_ATTEMPTS", cfg.Post.MaxAttempts, envconfig.IntBetween(1, 10)))
	cfg.Post.LinkMode = resolve(l, "post_link_mode",
		envconfig.LoadEnvWithFallback("POST_LINK_MODE", cfg.Post.LinkMode, oneOf("embed", "inline")))
	cfg.Post.Condenser = resolve(l, "condenser",
		envconfig.LoadEnvWithFallback("CONDENSER", cfg.Post.Condenser, oneOf("truncate", "claude", "openai")))
	cfg.Post.DryRun = resolve(l, "dry_run", envconfig.LoadEnvBool("DRY_RUN", cfg.Post.DryRun))

	cfg.Enrich.FlickrAPIKey = envconfig.LoadEnvString("FLICKR_API_KEY", cfg.Enrich.FlickrAPIKey)
	cfg.Enrich.FlickrAPISecret = envconfig.LoadEnvString("FLICKR_API_SECRET", cfg.Enrich.FlickrAPISecret)
	cfg.Enrich.AnthropicAPIKey = envconfig.LoadEnvString("ANTHROPIC_API_KEY", cfg.Enrich.AnthropicAPIKey)
	cfg.Enrich.OpenAIAPIKey = envconfig.LoadEnvString("OPENAI_API_KEY", cfg.Enrich.OpenAIAPIKey)

	cfg.HTTP.FetchTimeout = resolve(l, "fetch_timeout",
		envconfig.LoadEnvDuration("FETCH_TIMEOUT", cfg.HTTP.FetchTimeout, envconfig.DurationBetween(time.Second, 5*time.Minute)))
	cfg.HTTP.InsecureSkipVerify = resolve(l, "insecure_skip_verify",
		envconfig.LoadEnvBool("INSECURE_SKIP_VERIFY", cfg.HTTP.InsecureSkipVerify))

	cfg.Log.Level = envconfig.LoadEnvString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envconfig.LoadEnvString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envconfig.LoadEnvString("LOG_FILE", cfg.Log.File)

	cfg.MetricsPort = resolve(l, "metrics_port",
		envconfig.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, envconfig.IntBetween(1024, 65535)))
	cfg.HealthPort = resolve(l, "health_port",
		envconfig.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, envconfig.IntBetween(1024, 65535)))
}

func resolve[T any](l *loader, field string, r envconfig.Result[T]) T {
	if r.FallbackApplied {
		l.fallback = true
		if l.metrics != nil {
			l.metrics.RecordValidationError(field)
			l.metrics.RecordFallback(field)
		}
		if l.logger != nil {
			l.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", r.Warning))
		}
	}
	return r.Value
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

// Validate reports every setting that prevents the worker from running.
func (c *Config) Validate() error {
	var errs []error

	if c.Bluesky.Handle == "" {
		errs = append(errs, errors.New("BLUESKY_HANDLE is required"))
	}
	if c.Bluesky.Password == "" {
		errs = append(errs, errors.New("BLUESKY_PASSWORD is required"))
	}
	if err := absoluteURL(c.Bluesky.PDSURL); err != nil {
		errs = append(errs, fmt.Errorf("bluesky pds url: %w", err))
	}
	if err := absoluteURL(c.Source.PageURL); err != nil {
		errs = append(errs, fmt.Errorf("disruption page url: %w", err))
	}

	switch c.Store.Driver {
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("STORE_DSN is required for driver %s", c.Store.Driver))
		}
	case StoreJSON:
		if c.Store.SeenFile == "" {
			errs = append(errs, errors.New("SEEN_FILE is required for driver json"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if err := envconfig.ValidateCronSchedule(c.Post.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("cycle schedule: %w", err))
	}
	if err := envconfig.ValidateTimezone(c.Post.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := envconfig.ValidateIntRange(c.Post.MaxAttempts, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("publish max attempts: %w", err))
	}

	switch c.Post.Condenser {
	case "claude":
		if c.Enrich.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when CONDENSER=claude"))
		}
	case "openai":
		if c.Enrich.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when CONDENSER=openai"))
		}
	}

	if c.MetricsPort == c.HealthPort {
		errs = append(errs, fmt.Errorf("metrics and health ports must differ, both are %d", c.MetricsPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func absoluteURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", s)
	}
	return nil
}
