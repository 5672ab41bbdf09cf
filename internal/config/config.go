// Package config loads the npbstats YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"npbstats/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backfill pipeline.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Source   Source   `yaml:"source"`
	Backfill Backfill `yaml:"backfill"`
	Notify   Notify   `yaml:"notify"`
	Logging  Logging  `yaml:"logging"`
}

// Storage holds paths for data persistence. CurrentDB is the read-only
// current-season database; HistoryDB is the read-write backfill target.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	CurrentDB  string `yaml:"current_db"`
	HistoryDB  string `yaml:"history_db"`
	ArchiveRaw bool   `yaml:"archive_raw"`
}

// Source configures the NPB stats HTTP source.
type Source struct {
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	UserAgent       string `yaml:"user_agent"`
}

// Backfill holds per-league coefficient delta thresholds, expressed in
// percent. The farm league gets a tighter gate because its smaller samples
// drift more between seasons for legitimate reasons and a real anomaly is
// easier to miss.
type Backfill struct {
	FirstDeltaPct float64 `yaml:"first_delta_pct"`
	FarmDeltaPct  float64 `yaml:"farm_delta_pct"`
}

// Notify configures the alerting boundary.
type Notify struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with working defaults. An empty or
// partial YAML file yields these values for the missing fields.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir: "data",
		},
		Source: Source{
			BaseURL:         "https://stats.npb-data.example.jp",
			RateLimitPerMin: 60,
			MaxRetries:      3,
			TimeoutSec:      30,
			UserAgent:       "npbstats-backfill/1.0",
		},
		Backfill: Backfill{
			FirstDeltaPct: 7,
			FarmDeltaPct:  5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides. A missing
// file is not an error: the defaults plus environment stand alone.
func Load(path string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.fillDerived()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDerived resolves DB paths that default relative to the data dir.
func (c *Config) fillDerived() {
	if c.Storage.CurrentDB == "" {
		c.Storage.CurrentDB = filepath.Join(c.Storage.DataDir, "db_current.db")
	}
	if c.Storage.HistoryDB == "" {
		c.Storage.HistoryDB = filepath.Join(c.Storage.DataDir, "db_history.db")
	}
}

func (c *Config) validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must not be empty")
	}
	if c.Backfill.FirstDeltaPct <= 0 || c.Backfill.FarmDeltaPct <= 0 {
		return fmt.Errorf("backfill delta thresholds must be positive")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NPB_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("NPB_CURRENT_DB"); v != "" {
		cfg.Storage.CurrentDB = v
	}
	if v := os.Getenv("NPB_HISTORY_DB"); v != "" {
		cfg.Storage.HistoryDB = v
	}
	if v := os.Getenv("NPB_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("NPB_SLACK_WEBHOOK"); v != "" {
		cfg.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("NPB_ARCHIVE_RAW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.ArchiveRaw = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// DeltaThreshold returns the coefficient delta gate for the given league as
// a fraction (7% -> 0.07).
func (c *Config) DeltaThreshold(league domain.League) float64 {
	if league == domain.LeagueFarm {
		return c.Backfill.FarmDeltaPct / 100
	}
	return c.Backfill.FirstDeltaPct / 100
}
