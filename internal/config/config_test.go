package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/patternwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, config.FormatText)
			convey.So(cfg.Database.Driver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.Redis.LockTTL, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Detector.MinSamples, convey.ShouldEqual, 3)
			convey.So(cfg.Cooldown.Enabled, convey.ShouldBeFalse)
			convey.So(cfg.Cooldown.Window, convey.ShouldEqual, 7*24*time.Hour)
			convey.So(cfg.Stagnation.IncludeNeverPracticed, convey.ShouldBeTrue)
			convey.So(cfg.Tracing.Exporter, convey.ShouldEqual, config.ExporterNone)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }},
			{"postgres without dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }},
			{"sqlite without dsn", func(c *config.Config) { c.Database.Driver = config.DriverSQLite }},
			{"redis without ttl", func(c *config.Config) { c.Redis.Addr = "localhost:6379"; c.Redis.LockTTL = 0 }},
			{"negative interval", func(c *config.Config) { c.Schedule.Interval = -time.Second }},
			{"negative manager cap", func(c *config.Config) { c.Detector.MaxManagersPerAlert = -1 }},
			{"negative run timeout", func(c *config.Config) { c.Detector.RunTimeout = -time.Second }},
			{"zero min samples", func(c *config.Config) { c.Detector.MinSamples = 0 }},
			{"negative cooldown", func(c *config.Config) { c.Cooldown.Window = -time.Hour }},
			{"unknown exporter", func(c *config.Config) { c.Tracing.Exporter = "zipkin" }},
			{"otlp without endpoint", func(c *config.Config) { c.Tracing.Exporter = config.ExporterOTLPHTTP }},
			{"sample ratio above 1", func(c *config.Config) { c.Tracing.SampleRatio = 1.5 }},
		}

		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				c := *cfg
				tc.mutate(&c)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(c.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When sqlite has a dsn", func() {
			c := *cfg
			c.Database.Driver = config.DriverSQLite
			c.Database.DSN = "file:patternwatch.db"

			convey.Convey("Then it is valid", func() {
				convey.So(c.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
