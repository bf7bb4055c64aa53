package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chronoly/internal/backend"
	"chronoly/internal/cli"
	"chronoly/internal/config"
	"chronoly/internal/services"
	"chronoly/internal/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume change events and export weekly totals",
		Long: `The worker listens on the AMQP queue and, for every change, recomputes the
totals of the affected week and exports them. A timer re-exports the current
week as well, so missed messages are caught up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), a, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Export the current week once and exit")
	return cmd
}

func runWorker(ctx context.Context, a *app, once bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := a.cfg, a.logger
	if !cfg.SharedStore() {
		return fmt.Errorf("worker needs DATA_BACKEND=%s to see the server's writes, got %q; with other backends serve exports on its own timer",
			config.BackendSQLite, cfg.DataBackend)
	}
	logger.Info("Starting chronoly worker")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	res, bcfg, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}

	exporter, err := backend.NewFactory(logger).CreateExporter(ctx, bcfg)
	if err != nil {
		_ = res.Cleanup()
		return err
	}
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exports stay in memory")
	}

	// The worker only reads; it must not publish events of its own.
	tracker := services.NewTrackerService(res.Store, services.WithLogger(logger))
	w := worker.NewExportWorker(tracker, exporter, loc, logger)

	if once {
		defer res.Cleanup()
		return w.ExportWeek(ctx, time.Now())
	}

	scheduler := worker.NewScheduler(w, worker.SchedulerConfig{Interval: cfg.ExportInterval})
	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Export scheduler did not stop cleanly", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	if err := scheduler.Start(runCtx); err != nil {
		return err
	}

	if res.Publisher == nil {
		logger.Warn("AMQP not configured or unreachable; exporting on the timer only")
	} else {
		go func() {
			err := res.Publisher.Consume(runCtx, w.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(runCtx, done)
	return nil
}
