package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/okian/patternwatch/pkg/logger"
)

const defaultSlowQuery = 500 * time.Millisecond

// Open connects to the store selected by driver. The memory driver ignores
// dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	cfg := openConfig{log: logger.Nop(), slowThreshold: defaultSlowQuery}
	for _, opt := range opts {
		opt(&cfg)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("open %s: %w", driver, ErrMissingDSN)
		}
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("open %s: %w", driver, ErrMissingDSN)
		}
		dialector = sqlite.Open(dsn)
		if cfg.maxOpenConns == 0 {
			cfg.maxOpenConns = 1
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLog(cfg.log, cfg.slowThreshold),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(cfg.maxOpenConns)
	}

	store := NewGormStore(db)
	if cfg.autoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func newID() string { return uuid.NewString() }
