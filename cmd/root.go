package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/meterclient/internal/api"
	"github.com/tejusbharadwaj/meterclient/internal/auth"
	"github.com/tejusbharadwaj/meterclient/internal/clock"
	"github.com/tejusbharadwaj/meterclient/internal/config"
	"github.com/tejusbharadwaj/meterclient/internal/daterange"
	"github.com/tejusbharadwaj/meterclient/internal/metrics"
	"github.com/tejusbharadwaj/meterclient/internal/paginate"
	"github.com/tejusbharadwaj/meterclient/internal/transport"
)

type rootOptions struct {
	cfgFile string
	verbose bool
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "meterclient",
		Short: "Read smart meter data from the metering API",
		Long: `meterclient talks to the smart meter REST API.

Examples:
  meterclient meters
  meterclient series --type QUARTER_HOUR --meter AT0010000000000000001000000000001 --from 2024-01-01
  meterclient series --type DAY --paginate --chunk-days 90 --output yaml
  meterclient serve --config config.yaml`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (defaults and APP_* environment when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")

	root.AddCommand(newMetersCmd(opts))
	root.AddCommand(newSeriesCmd(opts))
	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newServeCmd(opts))

	return root
}

// app holds the wired client stack for one command run.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	clock    clock.Clock
	client   *api.Client
	closers  []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to release resource")
		}
	}
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		clock:    clock.System{},
	}

	var tr transport.Transport = transport.NewHTTPTransport(transport.HTTPOptions{
		Timeout:   cfg.Transport.Timeout,
		RateLimit: cfg.Transport.RateLimit,
		RateBurst: cfg.Transport.RateBurst,
		Logger:    logger,
	})
	if cfg.Transport.CacheEnabled {
		cache, err := transport.OpenResponseCache(cfg.Transport.CacheDir, cfg.Transport.CacheTTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache)
		tr = transport.NewCachingTransport(tr, cache, a.clock, logger)
	}

	tokens, err := auth.NewManager(auth.Config{
		TokenURL:     cfg.API.TokenURL,
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		RetryDelay:   cfg.Retry.Delay,
	}, tr, a.clock, logger, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	exec, err := api.NewExecutor(api.ExecutorConfig{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Retry:   api.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.Delay},
	}, tokens, tr, a.clock, logger, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client, err = api.NewClient(
		exec,
		daterange.NewResolver(a.clock, logger),
		paginate.New(logger, a.metrics),
		api.ClientOptions{
			ChunkDays:          cfg.Pagination.ChunkDays,
			MeterInfoCacheSize: cfg.Pagination.MeterInfoCacheSize,
		},
		logger,
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return logger, nil
}
