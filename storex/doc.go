// Package storex gives data providers a GORM-backed database and lets the
// node track its stores for health checks and shutdown.
//
// # Overview
//
// Stores are opened from the DB_* settings with MySQL, PostgreSQL or SQLite
// drivers. Attach registers the store in the service collection so providers
// can take a *gorm.DB constructor parameter; when SQL tracing is enabled the
// obsx SQL instrumentation plugin is installed on the handle.
//
// # Usage
//
//	opts := storex.OptionsFromConfig(cfg.Database, logger)
//	if err := storex.Attach(services, opts, true); err != nil {
//		return err
//	}
//
//	reg := storex.NewRegistry()
//	_ = reg.Register("main", store)
//	_ = reg.Ping(ctx)
package storex
