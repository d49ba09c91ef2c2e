package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/patternwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	config.EnvConfigPath,
	"PATTERNWATCH_ADDR",
	"PATTERNWATCH_LOG_LEVEL",
	"PATTERNWATCH_LOG_FORMAT",
	"PATTERNWATCH_DATABASE__DRIVER",
	"PATTERNWATCH_DATABASE__DSN",
	"PATTERNWATCH_DATABASE__AUTO_MIGRATE",
	"PATTERNWATCH_REDIS__ADDR",
	"PATTERNWATCH_REDIS__DB",
	"PATTERNWATCH_REDIS__LOCK_TTL",
	"PATTERNWATCH_AUTH__JWT_SECRET",
	"PATTERNWATCH_SCHEDULE__INTERVAL",
	"PATTERNWATCH_DETECTOR__PARALLEL_PASSES",
	"PATTERNWATCH_DETECTOR__MAX_MANAGERS_PER_ALERT",
	"PATTERNWATCH_DETECTOR__MIN_SAMPLES",
	"PATTERNWATCH_COOLDOWN__ENABLED",
	"PATTERNWATCH_COOLDOWN__WINDOW",
	"PATTERNWATCH_STAGNATION__INCLUDE_NEVER_PRACTICED",
	"PATTERNWATCH_TRACING__EXPORTER",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patternwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Database.Driver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.Schedule.Interval, convey.ShouldEqual, time.Duration(0))
			})
		})

		convey.Convey("When loading config with nested environment variables", func() {
			_ = os.Setenv("PATTERNWATCH_ADDR", ":8080")
			_ = os.Setenv("PATTERNWATCH_DATABASE__DRIVER", "sqlite")
			_ = os.Setenv("PATTERNWATCH_DATABASE__DSN", "file:test.db")
			_ = os.Setenv("PATTERNWATCH_DATABASE__AUTO_MIGRATE", "true")
			_ = os.Setenv("PATTERNWATCH_SCHEDULE__INTERVAL", "15m")
			_ = os.Setenv("PATTERNWATCH_DETECTOR__MAX_MANAGERS_PER_ALERT", "3")
			_ = os.Setenv("PATTERNWATCH_DETECTOR__MIN_SAMPLES", "5")
			_ = os.Setenv("PATTERNWATCH_COOLDOWN__ENABLED", "true")
			_ = os.Setenv("PATTERNWATCH_COOLDOWN__WINDOW", "72h")
			_ = os.Setenv("PATTERNWATCH_STAGNATION__INCLUDE_NEVER_PRACTICED", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Database.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Database.DSN, convey.ShouldEqual, "file:test.db")
				convey.So(cfg.Database.AutoMigrate, convey.ShouldBeTrue)
				convey.So(cfg.Schedule.Interval, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.Detector.MaxManagersPerAlert, convey.ShouldEqual, 3)
				convey.So(cfg.Detector.MinSamples, convey.ShouldEqual, 5)
				convey.So(cfg.Cooldown.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Cooldown.Window, convey.ShouldEqual, 72*time.Hour)
				convey.So(cfg.Stagnation.IncludeNeverPracticed, convey.ShouldBeFalse)
			})

			convey.Convey("Then untouched sections keep their defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Redis.LockTTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Tracing.Exporter, convey.ShouldEqual, config.ExporterNone)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
log_format: json
redis:
  addr: "localhost:6379"
  lock_ttl: 2m
detector:
  parallel_passes: true
tracing:
  exporter: stdout
`)
			_ = os.Setenv(config.EnvConfigPath, path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, config.FormatJSON)
				convey.So(cfg.Redis.Addr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.Redis.LockTTL, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.Redis.LockKey, convey.ShouldEqual, "patternwatch:detect-patterns:lock")
				convey.So(cfg.Detector.ParallelPasses, convey.ShouldBeTrue)
				convey.So(cfg.Tracing.Exporter, convey.ShouldEqual, config.ExporterStdout)
			})

			convey.Convey("And env vars are set as well", func() {
				_ = os.Setenv("PATTERNWATCH_ADDR", ":7070")
				cfg, err := config.Load(ctx)

				convey.Convey("Then env takes precedence over the file", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
					convey.So(cfg.LogFormat, convey.ShouldEqual, config.FormatJSON)
				})
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_, err := config.LoadFile(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it fails with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an env var cannot be decoded", func() {
			_ = os.Setenv("PATTERNWATCH_REDIS__DB", "not_a_number")
			_, err := config.Load(ctx)

			convey.Convey("Then it fails with ErrLoadConfig", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the loaded values are invalid", func() {
			_ = os.Setenv("PATTERNWATCH_DATABASE__DRIVER", "postgres")
			_, err := config.Load(ctx)

			convey.Convey("Then it fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
