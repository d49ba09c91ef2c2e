package repository

import (
	"time"

	"github.com/okian/patternwatch/pkg/logger"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type openConfig struct {
	log           logger.Logger
	autoMigrate   bool
	slowThreshold time.Duration
	maxOpenConns  int
}

// Option applies a configuration option to Open.
type Option func(*openConfig)

// WithLogger routes gorm's logs to l.
func WithLogger(l logger.Logger) Option {
	return func(c *openConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAutoMigrate creates or updates the tables after connecting.
func WithAutoMigrate(enabled bool) Option {
	return func(c *openConfig) {
		c.autoMigrate = enabled
	}
}

// WithSlowQueryThreshold logs queries slower than d as warnings.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(c *openConfig) {
		if d > 0 {
			c.slowThreshold = d
		}
	}
}

// WithMaxOpenConns limits the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *openConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}
