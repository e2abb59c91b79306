// Package config defines service configuration and its layered loader.
package config

import (
	"context"
	"fmt"

	"github.com/okian/gachasim/internal/adapters/repository"
	"github.com/okian/gachasim/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler to JSON output.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the session store: sqlite, postgres or memory.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite file path or the postgres connection string.
	StoreDSN string `koanf:"store_dsn"`

	// BannerFile points at a YAML or JSON banner document.
	BannerFile string `koanf:"banner_file"`

	// BannerAPIURL is the base URL of the banner backend. Takes precedence over BannerFile.
	BannerAPIURL string `koanf:"banner_api_url"`

	// RNGSeed fixes the draw sequence. Zero seeds from the clock.
	RNGSeed uint64 `koanf:"rng_seed"`

	// RevealDelayMS is how long each pull holds the in-flight flag.
	RevealDelayMS int `koanf:"reveal_delay_ms"`

	// InitialCrystals and InitialTickets are the starting and reset balances.
	InitialCrystals int `koanf:"initial_crystals"`
	InitialTickets  int `koanf:"initial_tickets"`

	// PersistQueueSize bounds the snapshot queue ahead of the store writer.
	PersistQueueSize int `koanf:"persist_queue_size"`

	// IdempotencyCacheSize caps remembered Idempotency-Key replies.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// MetricsEnabled turns pull metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshMS is the poll interval of the gauge updaters.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// MetricsDeployment, when set, is attached to every metric as a deployment label.
	MetricsDeployment string `koanf:"metrics_deployment"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		StoreDriver:          repository.DriverSQLite,
		StoreDSN:             "data/gacha.db",
		RevealDelayMS:        1500,
		InitialCrystals:      model.DefaultCrystals,
		InitialTickets:       model.DefaultTickets,
		PersistQueueSize:     256,
		IdempotencyCacheSize: 10_000,
		MetricsEnabled:       true,
		MetricsRefreshMS:     10_000,
	}
}

// Validate checks field ranges and normalizes the store driver.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	driver := repository.NormalizeDriver(c.StoreDriver)
	switch driver {
	case repository.DriverSQLite, repository.DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, driver)
		}
	case repository.DriverMemory:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, repository.ErrUnknownDriver, c.StoreDriver)
	}
	c.StoreDriver = driver

	for name, v := range map[string]int{
		"reveal_delay_ms":        c.RevealDelayMS,
		"initial_crystals":       c.InitialCrystals,
		"initial_tickets":        c.InitialTickets,
		"persist_queue_size":     c.PersistQueueSize,
		"idempotency_cache_size": c.IdempotencyCacheSize,
		"metrics_refresh_ms":     c.MetricsRefreshMS,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidConfig, name, v)
		}
	}
	return nil
}
