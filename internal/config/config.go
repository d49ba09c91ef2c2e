// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Nested sections map to dotted koanf keys, e.g. database.dsn.
// - Errors returned to callers wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"time"
)

// Supported values for the enumerated settings.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"

	FormatText = "text"
	FormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoder: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Auth       AuthConfig       `koanf:"auth"`
	Schedule   ScheduleConfig   `koanf:"schedule"`
	Detector   DetectorConfig   `koanf:"detector"`
	Cooldown   CooldownConfig   `koanf:"cooldown"`
	Stagnation StagnationConfig `koanf:"stagnation"`
	Tracing    TracingConfig    `koanf:"tracing"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// RedisConfig configures the distributed run lock. An empty Addr keeps the
// lock in process.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockKey  string        `koanf:"lock_key"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

// AuthConfig configures bearer token checks on the trigger endpoint.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret    string `koanf:"jwt_secret"`
	RequiredRole string `koanf:"required_role"`
}

// ScheduleConfig drives the in-process ticker. Zero disables it.
type ScheduleConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type DetectorConfig struct {
	ParallelPasses      bool          `koanf:"parallel_passes"`
	MaxManagersPerAlert int           `koanf:"max_managers_per_alert"`
	RunTimeout          time.Duration `koanf:"run_timeout"`
	// MinSamples is the game count each week needs before a performance
	// drop is computed.
	MinSamples int `koanf:"min_samples"`
}

type CooldownConfig struct {
	Enabled bool          `koanf:"enabled"`
	Window  time.Duration `koanf:"window"`
}

type StagnationConfig struct {
	IncludeNeverPracticed bool `koanf:"include_never_practiced"`
}

type TracingConfig struct {
	Exporter    string  `koanf:"exporter"`
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// New creates a Config with defaults. The context is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: FormatText,
		Addr:      ":9080",
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Redis: RedisConfig{
			LockKey: "patternwatch:detect-patterns:lock",
			LockTTL: 5 * time.Minute,
		},
		Detector: DetectorConfig{
			RunTimeout: 5 * time.Minute,
			MinSamples: 3,
		},
		Cooldown: CooldownConfig{
			Window: 7 * 24 * time.Hour,
		},
		Stagnation: StagnationConfig{
			IncludeNeverPracticed: true,
		},
		Tracing: TracingConfig{
			Exporter:    ExporterNone,
			SampleRatio: 1,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != FormatText && c.LogFormat != FormatJSON:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for driver %q", ErrInvalidConfig, c.Database.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("%w: redis.lock_ttl must be positive", ErrInvalidConfig)
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("%w: schedule.interval must not be negative", ErrInvalidConfig)
	}
	if c.Detector.MaxManagersPerAlert < 0 {
		return fmt.Errorf("%w: detector.max_managers_per_alert must not be negative", ErrInvalidConfig)
	}
	if c.Detector.MinSamples < 1 {
		return fmt.Errorf("%w: detector.min_samples must be at least 1", ErrInvalidConfig)
	}
	if c.Detector.RunTimeout < 0 {
		return fmt.Errorf("%w: detector.run_timeout must not be negative", ErrInvalidConfig)
	}
	if c.Cooldown.Window < 0 {
		return fmt.Errorf("%w: cooldown.window must not be negative", ErrInvalidConfig)
	}

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout:
	case ExporterOTLPHTTP:
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("%w: tracing.endpoint is required for otlphttp", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown tracing.exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}
