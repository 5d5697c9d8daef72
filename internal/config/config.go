package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the timetable service.
// Environment variables are parsed from the PERIODIX_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage drivers: "postgres" or "sqlite"
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"periodix.db"`

	// Key used to decrypt stored upstream secrets (hex, 32 bytes).
	CredentialKey string `envconfig:"CREDENTIAL_KEY" default:""`

	// Cache and retention knobs
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	PruneInterval time.Duration `envconfig:"PRUNE_INTERVAL" default:"6h"`
	MaxRecordAge  time.Duration `envconfig:"MAX_RECORD_AGE" default:"1080h"` // 45 days
	HistoryKeep   int           `envconfig:"HISTORY_KEEP" default:"2"`
	ClassCacheTTL time.Duration `envconfig:"CLASS_CACHE_TTL" default:"10m"`

	// Periodic exam sweep
	SweepStartDelay time.Duration `envconfig:"SWEEP_START_DELAY" default:"30s"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"6h"`
	SweepLookahead  time.Duration `envconfig:"SWEEP_LOOKAHEAD" default:"720h"` // 1 month
	SweepPacing     time.Duration `envconfig:"SWEEP_PACING" default:"2s"`

	// Background prefetch of adjacent weeks after a successful fetch
	PrefetchEnabled bool `envconfig:"PREFETCH_ENABLED" default:"true"`
}

// ResolveDefaults validates the configuration and derives DBDriver when set to
// "auto" or empty: postgres when a DSN is present, sqlite otherwise.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.HistoryKeep < 1 {
		return fmt.Errorf("HISTORY_KEEP must be at least 1, got %d", c.HistoryKeep)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with PERIODIX_
// Example: PERIODIX_HTTP_PORT, PERIODIX_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PERIODIX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("prune_interval", cfg.PruneInterval).
		Dur("sweep_interval", cfg.SweepInterval).
		Bool("prefetch", cfg.PrefetchEnabled).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		HTTPPort:    8080,

		DBDriver:   "sqlite",
		SQLitePath: ":memory:",

		CacheTTL:      5 * time.Minute,
		PruneInterval: 6 * time.Hour,
		MaxRecordAge:  45 * 24 * time.Hour,
		HistoryKeep:   2,
		ClassCacheTTL: 10 * time.Minute,

		SweepStartDelay: time.Millisecond,
		SweepInterval:   6 * time.Hour,
		SweepLookahead:  30 * 24 * time.Hour,
		SweepPacing:     0,

		PrefetchEnabled: true,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
