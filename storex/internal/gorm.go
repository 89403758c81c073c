// Package internal contains the GORM adapter behind storex.
package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/core/utils"
)

// GORMStore implements the Store interface using GORM.
type GORMStore struct {
	db     *gorm.DB
	logger log.Logger
}

// NewGORMStore wraps an open handle.
func NewGORMStore(db *gorm.DB, logger log.Logger) *GORMStore {
	if logger == nil {
		logger = log.Nop()
	}
	return &GORMStore{db: db, logger: logger}
}

// Ping checks the database connection.
func (s *GORMStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *GORMStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// GetDB returns the GORM handle.
func (s *GORMStore) GetDB() *gorm.DB { return s.db }

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string
	Driver          string // mysql, postgres or sqlite
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          log.Logger
	LogLevel        logger.LogLevel
	Plugins         []gorm.Plugin
	// ConnectRetry bounds the initial ping. Zero attempts skips the ping.
	ConnectRetry utils.RetryConfig
}

// DefaultGORMOptions returns pool defaults.
func DefaultGORMOptions() GORMOptions {
	return GORMOptions{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		LogLevel:        logger.Silent,
		ConnectRetry:    utils.DefaultRetryConfig(),
	}
}

// NewGORMStoreFromOptions opens the database, installs plugins, sizes the
// pool and pings it with retries.
func NewGORMStoreFromOptions(ctx context.Context, opts GORMOptions) (*GORMStore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	if opts.Driver == "" {
		return nil, fmt.Errorf("driver is required")
	}

	var gormLogger logger.Interface
	if opts.Logger != nil {
		gormLogger = &gormLogAdapter{logger: opts.Logger}
	} else {
		gormLogger = logger.Default.LogMode(opts.LogLevel)
	}

	dialector, err := getGORMDriver(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	for _, p := range opts.Plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("install plugin %s: %w", p.Name(), err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	store := NewGORMStore(db, opts.Logger)
	if opts.ConnectRetry.MaxAttempts > 0 {
		if err := utils.Retry(ctx, opts.ConnectRetry, func() error { return store.Ping(ctx) }); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func getGORMDriver(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// gormLogAdapter routes GORM logging to the node logger.
type gormLogAdapter struct {
	logger log.Logger
}

func (l *gormLogAdapter) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *gormLogAdapter) Info(_ context.Context, msg string, data ...any) {
	l.logger.Info(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Warn(_ context.Context, msg string, data ...any) {
	l.logger.Warn(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Error(_ context.Context, msg string, data ...any) {
	l.logger.Error(nil, fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if err != nil {
		// record-not-found and constraint violations are handled by callers
		if isDatabaseConnectionError(err) {
			l.logger.Error(err, "database query failed", log.Str("error_type", "connection_error"))
		} else {
			l.logger.Debug("database query completed with error", log.Str("error", err.Error()))
		}
		return
	}
	sql, rows := fc()
	duration := time.Since(begin)
	if duration > 100*time.Millisecond || rows > 0 {
		l.logger.Debug("database query",
			log.Str("sql", sql),
			log.Int("rows", int(rows)),
			log.Dur("duration", duration))
	}
}

// isDatabaseConnectionError separates server and network failures from
// errors that are part of normal data access.
func isDatabaseConnectionError(err error) bool {
	if err == nil || err == gorm.ErrRecordNotFound {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"duplicate key",
		"unique constraint",
		"foreign key constraint",
		"check constraint",
		"not null constraint",
	} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
