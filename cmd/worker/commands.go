package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"natrail-bot/internal/config"
	"natrail-bot/internal/infra/worker"
	"natrail-bot/internal/observability/logging"
	"natrail-bot/internal/usecase/compose"
	"natrail-bot/internal/utils/text"
)

var errStopped = errors.New("monitor stopped")

type rootOptions struct {
	configFile string
	dryRun     bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "worker",
		Short:         "Post National Rail disruptions to Bluesky",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoop(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML tuning file (overrides CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "compose posts without sending them")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run cycles on the configured schedule until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLoop(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single cycle and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), opts)
			},
		},
		newAnnotateCommand(),
	)
	return root
}

func newAnnotateCommand() *cobra.Command {
	var operators []string
	cmd := &cobra.Command{
		Use:   "annotate <text>",
		Short: "Print the formatted text and its hashtag and link spans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return annotate(cmd.OutOrStdout(), strings.Join(args, " "), operators)
		},
	}
	cmd.Flags().StringSliceVar(&operators, "operator", compose.DefaultOperators, "operator names to tag")
	return cmd
}

func annotate(w io.Writer, input string, operators []string) error {
	formatted := compose.NewFormatter(nil, operators).Format(input)
	if _, err := fmt.Fprintln(w, formatted); err != nil {
		return err
	}
	for _, s := range text.Annotate(formatted) {
		if _, err := fmt.Fprintf(w, "%-7s %4d %4d  %s\n", s.Kind, s.ByteStart, s.ByteEnd, s.Text); err != nil {
			return err
		}
	}
	return nil
}

// setup loads configuration and logging shared by run and once.
func setup(opts *rootOptions, metrics *worker.WorkerMetrics) (*config.Config, *slog.Logger, io.Closer, error) {
	if opts.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.configFile); err != nil {
			return nil, nil, nil, err
		}
	}

	bootLogger := logging.NewLogger()
	cfg, err := config.Load(bootLogger, metrics.ConfigMetrics)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if opts.dryRun {
		cfg.Post.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	logger.Info("worker configuration loaded",
		slog.String("page_url", cfg.Source.PageURL),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("schedule", cfg.Post.Schedule),
		slog.String("timezone", cfg.Post.Timezone),
		slog.Duration("post_delay", cfg.Post.PostDelay),
		slog.Int("max_attempts", cfg.Post.MaxAttempts),
		slog.String("link_mode", cfg.Post.LinkMode),
		slog.String("condenser", cfg.Post.Condenser),
		slog.Bool("image_search", cfg.Enrich.FlickrAPIKey != ""),
		slog.Bool("dry_run", cfg.Post.DryRun))
	return cfg, logger, closer, nil
}

func runLoop(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := worker.NewWorkerMetrics()
	cfg, logger, closer, err := setup(opts, metrics)
	if err != nil {
		return err
	}
	defer closer.Close()

	health := worker.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	a, err := newApp(ctx, cfg, logger, worker.Recorders{metrics, health})
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewMetricsServer(fmt.Sprintf(":%d", cfg.MetricsPort), logger).Start(gctx)
	})
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error {
		health.SetReady(true)
		defer health.SetReady(false)
		if err := a.monitor.Run(gctx); err != nil {
			return err
		}
		// A clean stop of the monitor ends the servers too.
		return errStopped
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		logger.Error("worker stopped with error", slog.Any("error", err))
		return err
	}
	logger.Info("worker stopped")
	return nil
}

func runOnce(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := worker.NewWorkerMetrics()
	cfg, logger, closer, err := setup(opts, metrics)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := newApp(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.monitor.RunCycle(ctx)
	if err != nil {
		return err
	}
	logger.Info("single cycle finished",
		slog.Int("scraped", stats.Scraped),
		slog.Int("new", stats.New),
		slog.Int("posted", stats.Posted),
		slog.Int("failed", stats.Failed))
	return nil
}
