package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/food-risk-etl/internal/app"
	"github.com/couchcryptid/food-risk-etl/internal/config"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	deps := httpadapter.Deps{
		Pipeline:       a.Pipeline,
		Renderer:       a.Renderer,
		Submissions:    a.Submissions,
		Metrics:        metrics,
		DefaultVariant: string(cfg.Variant),
		DefaultBanding: cfg.Banding,
		OverridesPath:  cfg.OverridesPath,
	}
	if a.Runs != nil {
		deps.Runs = a.Runs
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, deps, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server.
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Warm-up county run: fills the table cache and flips readiness.
	g.Go(func() error {
		res, err := a.Pipeline.ScoreCounties(gctx, pipeline.CountyRequest{})
		if err != nil {
			logger.Error("warm-up run failed", "error", err)
			return nil
		}
		logger.Info("warm-up run complete", "run_id", res.RunID, "counties", res.Table.Len(), "notices", len(res.Notices))
		return nil
	})

	// Drain on signal or on a server failure.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("close error", "error", err)
	}
	logger.Info("shutdown complete")
}
