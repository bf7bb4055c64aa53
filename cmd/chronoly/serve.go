package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"chronoly/internal/auth"
	"chronoly/internal/backend"
	"chronoly/internal/cache"
	"chronoly/internal/cli"
	"chronoly/internal/config"
	apphttp "chronoly/internal/http"
	"chronoly/internal/services"
	"chronoly/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second

	// Bounds how long writes made by another process can go unseen on the dashboard.
	dashboardCacheTTL = 30 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := a.cfg, a.logger

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if cfg.AppPassword == config.DefaultPassword {
		logger.Warn("APP_PASSWORD is the default value; set a real password before exposing the server")
	}

	res, bcfg, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithDashboardCache(cache.New[services.Dashboard](cache.Config{MaxSize: 52, TTL: dashboardCacheTTL})),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	tracker := services.NewTrackerService(res.Store, opts...)

	gate, err := auth.NewGate(cfg.AppPassword, cfg.SessionKey, cfg.CookieSecure, logger)
	if err != nil {
		_ = res.Cleanup()
		return err
	}

	// A separate worker can only refresh the sheet when a broker is configured and it
	// can open the same store. Otherwise the server exports on a timer.
	var scheduler *worker.Scheduler
	if cfg.SheetsEnabled() && (res.Publisher == nil || !cfg.SharedStore()) {
		exporter, err := backend.NewFactory(logger).CreateExporter(ctx, bcfg)
		if err != nil {
			_ = res.Cleanup()
			return err
		}
		w := worker.NewExportWorker(tracker, exporter, loc, logger)
		scheduler = worker.NewScheduler(w, worker.SchedulerConfig{Interval: cfg.ExportInterval})
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Tracker:            tracker,
		Gate:               gate,
		Location:           loc,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		LoginPerMinute:     cfg.LoginAttemptsPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Warn("Export scheduler did not stop cleanly", "error", err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	if scheduler != nil {
		if err := scheduler.Start(runCtx); err != nil {
			logger.Error("Failed to start export scheduler", "error", err)
		}
	}

	logger.Info("Starting chronoly server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"amqp_enabled", res.Publisher != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = res.Cleanup()
		return err
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
	return nil
}
