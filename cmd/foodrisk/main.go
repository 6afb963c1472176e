// Command foodrisk scores food-insecurity tables from the command line:
// household rows, county spike probabilities, synthetic weekly series,
// community submissions, and the recorded run history.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/food-risk-etl/internal/app"
	"github.com/couchcryptid/food-risk-etl/internal/config"
	"github.com/couchcryptid/food-risk-etl/internal/observability"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "foodrisk:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg, observability.NewMetrics()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the configuration shared by every subcommand. Flags write
// straight into cfg, so an unset flag keeps the environment value.
type cli struct {
	cfg       *config.Config
	metrics   *observability.Metrics
	logLevel  string
	logFormat string
	logger    *slog.Logger
}

func newRootCmd(cfg *config.Config, metrics *observability.Metrics) *cobra.Command {
	c := &cli{cfg: cfg, metrics: metrics}

	root := &cobra.Command{
		Use:   "foodrisk",
		Short: "Food insecurity risk scoring",
		Long: `foodrisk scores household and county tables for food insecurity risk.

Settings default from the same environment variables as the server
(SCORE_VARIANT, DATA_DIR, RUN_STORE_PATH, ...); flags override them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.logger = observability.NewWriterLogger(cmd.ErrOrStderr(), c.logLevel, c.logFormat)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&c.logFormat, "log-format", "text", "log format (text or json)")
	pf.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the county CSV tables")
	pf.StringVar(&cfg.OverridesPath, "overrides-file", cfg.OverridesPath, "county overrides YAML")
	pf.BoolVar(&cfg.SyntheticEnabled, "synthetic", cfg.SyntheticEnabled, "fall back to a synthetic weekly series")
	pf.Int64Var(&cfg.SyntheticSeed, "seed", cfg.SyntheticSeed, "synthetic series seed")
	pf.IntVar(&cfg.SyntheticWeeks, "weeks", cfg.SyntheticWeeks, "synthetic series length in weeks")
	pf.IntVar(&cfg.TopN, "top", cfg.TopN, "entities listed in summaries and briefs")
	pf.StringVar(&cfg.SubmissionsPath, "submissions-file", cfg.SubmissionsPath, "community submissions CSV")
	pf.StringVar(&cfg.RunStorePath, "run-store", cfg.RunStorePath, "sqlite run history (empty disables)")

	root.AddCommand(
		c.scoreCmd(),
		c.countiesCmd(),
		c.generateCmd(),
		c.submitCmd(),
		c.submissionsCmd(),
		c.runsCmd(),
		c.overridesCmd(),
	)
	return root
}

// app builds the wired components. The CLI does not publish to Kafka.
func (c *cli) app(ctx context.Context) (*app.App, error) {
	cfg := *c.cfg
	cfg.KafkaBrokers = nil
	return app.New(ctx, &cfg, c.logger, c.metrics)
}

// writeFile creates path and passes it to write, closing it afterwards.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path) //nolint:gosec // operator-supplied output path
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
