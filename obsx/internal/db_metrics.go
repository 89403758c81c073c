package internal

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// RegisterDBMetrics observes sql.DBStats for a connection pool labelled with
// db_name. Calling it twice with the same name reports the pool twice.
//
// Metrics collected:
//   - db_pool_open_connections
//   - db_pool_in_use
//   - db_pool_idle
//   - db_pool_wait_count_total
//   - db_pool_wait_seconds_total
//   - db_pool_max_open
func RegisterDBMetrics(name string, db *sql.DB, meterProvider *sdkmetric.MeterProvider) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	meter := meterProvider.Meter("go.eggybyte.com/busnode/obsx/database")
	dbAttr := metric.WithAttributes(attribute.String("db_name", name))

	openConns, err := meter.Int64ObservableGauge(
		"db_pool_open_connections",
		metric.WithDescription("Number of established connections both in use and idle"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	inUse, err := meter.Int64ObservableGauge(
		"db_pool_in_use",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	idle, err := meter.Int64ObservableGauge(
		"db_pool_idle",
		metric.WithDescription("Number of idle connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	waitCount, err := meter.Int64ObservableCounter(
		"db_pool_wait_count_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return err
	}

	waitDuration, err := meter.Float64ObservableCounter(
		"db_pool_wait_seconds_total",
		metric.WithDescription("Total time blocked waiting for new connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	maxOpen, err := meter.Int64ObservableGauge(
		"db_pool_max_open",
		metric.WithDescription("Maximum number of open connections to the database"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(openConns, int64(stats.OpenConnections), dbAttr)
			observer.ObserveInt64(inUse, int64(stats.InUse), dbAttr)
			observer.ObserveInt64(idle, int64(stats.Idle), dbAttr)
			observer.ObserveInt64(waitCount, stats.WaitCount, dbAttr)
			observer.ObserveFloat64(waitDuration, stats.WaitDuration.Seconds(), dbAttr)
			observer.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections), dbAttr)
			return nil
		},
		openConns,
		inUse,
		idle,
		waitCount,
		waitDuration,
		maxOpen,
	)
	return err
}

// RegisterGORMMetrics unwraps the pool behind a GORM handle and registers it.
func RegisterGORMMetrics(name string, gormDB interface{ DB() (*sql.DB, error) }, meterProvider *sdkmetric.MeterProvider) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return RegisterDBMetrics(name, sqlDB, meterProvider)
}
