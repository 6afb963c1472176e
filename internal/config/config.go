package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Scoring.
	Variant        domain.Variant
	Banding        string // empty selects the variant default
	SpikeIndicator string
	SpikeWindow    int
	TopN           int

	// Data sources.
	DataDir          string
	OverridesPath    string
	SyntheticEnabled bool
	SyntheticSeed    int64
	SyntheticWeeks   int
	TableCacheSize   int

	// Report header.
	ReportTitle    string
	ReportBranding string

	// Persistence and publishing. Empty values disable the sink.
	SubmissionsPath string
	RunStorePath    string
	KafkaBrokers    []string
	KafkaTopic      string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	variant, err := domain.ParseVariant(sharedcfg.EnvOrDefault("SCORE_VARIANT", string(domain.VariantMean)))
	if err != nil {
		return nil, fmt.Errorf("invalid SCORE_VARIANT: %w", err)
	}
	if _, err := domain.NewRowScorer(variant); err != nil {
		return nil, fmt.Errorf("invalid SCORE_VARIANT: %s is a county-only variant", variant)
	}

	banding := os.Getenv("BANDING")
	if banding != "" {
		if _, err := domain.LookupBanding(banding); err != nil {
			return nil, fmt.Errorf("invalid BANDING: %w", err)
		}
	}

	spikeWindow, err := positiveInt("SPIKE_WINDOW", domain.DefaultSpikeWindow)
	if err != nil {
		return nil, err
	}
	weeks, err := positiveInt("SYNTHETIC_WEEKS", 52)
	if err != nil {
		return nil, err
	}
	topN, err := positiveInt("TOP_N", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := positiveInt("TABLE_CACHE_SIZE", 32)
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("SYNTHETIC_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SYNTHETIC_SEED")
	}

	syntheticEnabled := true
	if v := os.Getenv("SYNTHETIC_ENABLED"); v != "" {
		syntheticEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid SYNTHETIC_ENABLED")
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Variant:        variant,
		Banding:        banding,
		SpikeIndicator: sharedcfg.EnvOrDefault("SPIKE_INDICATOR", domain.ColSNAPApplications),
		SpikeWindow:    spikeWindow,
		TopN:           topN,

		DataDir:          os.Getenv("DATA_DIR"),
		OverridesPath:    sharedcfg.EnvOrDefault("OVERRIDES_PATH", "county_overrides.yaml"),
		SyntheticEnabled: syntheticEnabled,
		SyntheticSeed:    seed,
		SyntheticWeeks:   weeks,
		TableCacheSize:   cacheSize,

		ReportTitle:    sharedcfg.EnvOrDefault("REPORT_TITLE", "Food Insecurity Risk Brief"),
		ReportBranding: os.Getenv("REPORT_BRANDING"),

		SubmissionsPath: sharedcfg.EnvOrDefault("SUBMISSIONS_PATH", "community_submissions.csv"),
		RunStorePath:    os.Getenv("RUN_STORE_PATH"),
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "food-risk-scores"),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// BandingFor returns the configured banding table, or the default for the variant.
func (c *Config) BandingFor(v domain.Variant) domain.Banding {
	if c.Banding == "" {
		return domain.DefaultBanding(v)
	}
	b, err := domain.LookupBanding(c.Banding)
	if err != nil {
		return domain.DefaultBanding(v)
	}
	return b
}

// KafkaEnabled reports whether result publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func positiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
