// Package app wires configuration into the loader, pipeline, sinks, and
// renderers shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/food-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/food-risk-etl/internal/config"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/couchcryptid/food-risk-etl/internal/overrides"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/couchcryptid/food-risk-etl/internal/report"
	"github.com/couchcryptid/food-risk-etl/internal/store"
)

// App holds the wired components. Runs and Publisher are nil when disabled.
type App struct {
	Config      *config.Config
	Loader      *loader.Loader
	Overrides   overrides.Loaded
	Pipeline    *pipeline.Pipeline
	Renderer    *report.Renderer
	Submissions *store.Submissions
	Runs        *store.RunStore
	Publisher   *kafkaadapter.Publisher
}

// New builds the components described by cfg. The run store and the Kafka
// publisher are attached as pipeline sinks when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	spike := domain.NewSpikeScorer(cfg.SpikeIndicator, cfg.SpikeWindow)
	l := loader.New(loader.Options{
		DataDir:   cfg.DataDir,
		Synthetic: cfg.SyntheticEnabled,
		Seed:      cfg.SyntheticSeed,
		Weeks:     cfg.SyntheticWeeks,
		Spike:     spike,
		CacheSize: cfg.TableCacheSize,
	}, logger, metrics)

	ov := overrides.Load(nil, cfg.OverridesPath, logger)
	logger.Info("county overrides loaded", "source", ov.Source, "entries", len(ov.Overrides))

	a := &App{
		Config:      cfg,
		Loader:      l,
		Overrides:   ov,
		Submissions: store.NewSubmissions(cfg.SubmissionsPath),
		Renderer: report.NewRenderer(report.Options{
			Title:     cfg.ReportTitle,
			Branding:  cfg.ReportBranding,
			TopN:      cfg.TopN,
			Indicator: cfg.SpikeIndicator,
		}, logger, metrics),
	}

	var sinks []pipeline.ResultSink
	if cfg.RunStorePath != "" {
		runs, err := store.OpenRunStore(ctx, cfg.RunStorePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		a.Runs = runs
		sinks = append(sinks, runs)
		logger.Info("run history enabled", "path", cfg.RunStorePath)
	}
	if cfg.KafkaEnabled() {
		a.Publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, a.Publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.Pipeline = pipeline.New(l, ov.Overrides, logger, metrics, cfg.TopN, sinks...)
	return a, nil
}

// Close releases the sinks.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka publisher: %w", err))
		}
	}
	if a.Runs != nil {
		if err := a.Runs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run store: %w", err))
		}
	}
	return errors.Join(errs...)
}
