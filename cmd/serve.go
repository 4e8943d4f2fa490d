package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/meterclient/internal/api"
	"github.com/tejusbharadwaj/meterclient/internal/scheduler"
	"github.com/tejusbharadwaj/meterclient/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap history, schedule syncs and serve stored samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a)
		},
	}
}

// cacheInvalidatingSyncer drops cached read responses after each sync.
type cacheInvalidatingSyncer struct {
	fetcher *api.SeriesFetcher
	srv     *server.Server
}

func (s cacheInvalidatingSyncer) SyncRecent(ctx context.Context, days int) error {
	defer s.srv.InvalidateCache()
	return s.fetcher.SyncRecent(ctx, days)
}

func runServe(parent context.Context, a *app) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repo, err := openRepository(ctx, a)
	if err != nil {
		return err
	}

	cfg := a.cfg
	srv, err := server.SetupServer(repo, server.ServerConfig{
		CacheSize:      cfg.Server.CacheSize,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateBurst,
		MaxRange:       time.Duration(cfg.Server.MaxRangeDays) * 24 * time.Hour,
	}, a.metrics, a.registry, a.logger)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}
	srv.Health.SetServingStatus("database", server.Serving)

	fetcher := api.NewSeriesFetcher(a.client, repo, api.SyncConfig{
		Meters:      cfg.Scheduler.Meters,
		SeriesTypes: cfg.Scheduler.Types(),
		ChunkDays:   cfg.Pagination.ChunkDays,
	}, a.clock, a.logger)

	// Start background services
	errChan := make(chan error, 1)

	if cfg.Scheduler.Bootstrap {
		go func() {
			if err := fetcher.BootstrapHistoricalData(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).Error("Historical bootstrap failed")
				return
			}
			srv.InvalidateCache()
		}()
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(ctx, cacheInvalidatingSyncer{fetcher: fetcher, srv: srv}, cfg.Scheduler.Spec, cfg.Scheduler.RecentDays, a.logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.WithFields(logrus.Fields{"addr": httpServer.Addr}).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested, stopping server")
	case err := <-errChan:
		return err
	}

	srv.Health.SetServingStatus("database", server.NotServing)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	a.logger.Info("Server stopped")
	return nil
}
