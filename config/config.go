// Package config loads EnvMon configuration from YAML with environment
// variable overrides and validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/envmon/errors"
)

// Config is the root configuration for both binaries.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Collector CollectorConfig `yaml:"collector"`
	Fleet     FleetConfig     `yaml:"fleet"`
}

// CollectorConfig configures the collector process.
type CollectorConfig struct {
	HTTPAddr             string         `yaml:"http_addr"`
	NATSURL              string         `yaml:"nats_url"`
	Database             DatabaseConfig `yaml:"database"`
	CacheRefreshInterval time.Duration  `yaml:"cache_refresh_interval"`
	// UseCachedLookup validates ingested samples against the active-device
	// snapshot instead of hitting the store per sample.
	UseCachedLookup bool `yaml:"use_cached_lookup"`
}

// DatabaseConfig selects the sample store driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// FleetConfig configures the simulator fleet process.
type FleetConfig struct {
	RegistryURL  string        `yaml:"registry_url"`
	ServerURL    string        `yaml:"server_url"`
	NATSURL      string        `yaml:"nats_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SendInterval time.Duration `yaml:"send_interval"`
	Workers      int           `yaml:"workers"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Collector: CollectorConfig{
			HTTPAddr: ":8080",
			NATSURL:  "nats://127.0.0.1:4222",
			Database: DatabaseConfig{
				Driver: "sqlite",
				DSN:    "envmon.db",
			},
			CacheRefreshInterval: 10 * time.Second,
			UseCachedLookup:      false,
		},
		Fleet: FleetConfig{
			RegistryURL:  "http://127.0.0.1:8080",
			ServerURL:    "http://127.0.0.1:8080",
			NATSURL:      "nats://127.0.0.1:4222",
			PollInterval: 10 * time.Second,
			SendInterval: 5 * time.Second,
			Workers:      5,
			MaxAttempts:  3,
		},
	}
}

// Load reads configuration from the given YAML file (optional: a missing
// path keeps the defaults), applies ENVMON_* environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return cfg, errors.WrapFatal(err, "config", "Load", "read config file")
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.WrapInvalid(err, "config", "Load", "parse yaml")
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("ENVMON_LOG_LEVEL", &c.LogLevel)
	setString("ENVMON_LOG_FORMAT", &c.LogFormat)

	setString("ENVMON_HTTP_ADDR", &c.Collector.HTTPAddr)
	setString("ENVMON_NATS_URL", &c.Collector.NATSURL)
	setString("ENVMON_DB_DRIVER", &c.Collector.Database.Driver)
	setString("ENVMON_DB_DSN", &c.Collector.Database.DSN)
	setDuration("ENVMON_CACHE_REFRESH_INTERVAL", &c.Collector.CacheRefreshInterval)
	setBool("ENVMON_USE_CACHED_LOOKUP", &c.Collector.UseCachedLookup)

	setString("ENVMON_FLEET_REGISTRY_URL", &c.Fleet.RegistryURL)
	setString("ENVMON_FLEET_SERVER_URL", &c.Fleet.ServerURL)
	setString("ENVMON_FLEET_NATS_URL", &c.Fleet.NATSURL)
	setDuration("ENVMON_FLEET_POLL_INTERVAL", &c.Fleet.PollInterval)
	setDuration("ENVMON_FLEET_SEND_INTERVAL", &c.Fleet.SendInterval)
	setInt("ENVMON_FLEET_WORKERS", &c.Fleet.Workers)
	setInt("ENVMON_FLEET_MAX_ATTEMPTS", &c.Fleet.MaxAttempts)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Collector.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unsupported database driver %q", c.Collector.Database.Driver),
			"config", "Validate", "validate database driver")
	}
	if c.Collector.Database.DSN == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "database dsn")
	}
	if c.Collector.CacheRefreshInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"cache_refresh_interval must be positive")
	}
	if c.Fleet.PollInterval <= 0 || c.Fleet.SendInterval <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"fleet intervals must be positive")
	}
	if c.Fleet.Workers <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"fleet workers must be positive")
	}
	if c.Fleet.MaxAttempts <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"fleet max_attempts must be positive")
	}
	return nil
}
