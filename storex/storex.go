package storex

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.eggybyte.com/busnode/configx"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/core/utils"
	"go.eggybyte.com/busnode/obsx"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/storex/internal"
)

// Store is a storage backend. Implementations must be safe for concurrent use.
type Store interface {
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
}

// GORMStore is a Store backed by GORM.
type GORMStore interface {
	Store
	// GetDB returns the GORM handle; it is safe for concurrent use.
	GetDB() *gorm.DB
}

// Registry tracks the node's stores for health checks and shutdown.
type Registry struct {
	impl *internal.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{impl: internal.NewRegistry()}
}

// Register adds store under name.
func (r *Registry) Register(name string, store Store) error {
	return r.impl.Register(name, store)
}

// Unregister removes a store without closing it.
func (r *Registry) Unregister(name string) error {
	return r.impl.Unregister(name)
}

// Ping checks every store.
func (r *Registry) Ping(ctx context.Context) error {
	return r.impl.Ping(ctx)
}

// Close closes every store.
func (r *Registry) Close() error {
	return r.impl.Close()
}

// List returns the registered store names in sorted order.
func (r *Registry) List() []string {
	return r.impl.List()
}

// Get returns a registered store by name.
func (r *Registry) Get(name string) (Store, bool) {
	return r.impl.Get(name)
}

// Name identifies the registry as a health check.
func (r *Registry) Name() string { return "storage" }

// Check pings every store; it makes the registry a readiness check.
func (r *Registry) Check(ctx context.Context) error { return r.Ping(ctx) }

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string
	Driver          string // mysql, postgres or sqlite
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          log.Logger
	Plugins         []gorm.Plugin
	ConnectRetry    utils.RetryConfig // zero attempts skips the initial ping
}

// DefaultGORMOptions returns pool defaults for driver and dsn.
func DefaultGORMOptions(driver, dsn string) GORMOptions {
	d := internal.DefaultGORMOptions()
	return GORMOptions{
		DSN:             dsn,
		Driver:          driver,
		MaxIdleConns:    d.MaxIdleConns,
		MaxOpenConns:    d.MaxOpenConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnectRetry:    d.ConnectRetry,
	}
}

// OptionsFromConfig maps the DB_* settings.
func OptionsFromConfig(cfg configx.DatabaseConfig, logger log.Logger) GORMOptions {
	opts := DefaultGORMOptions(cfg.Driver, cfg.DSN)
	if cfg.MaxIdle > 0 {
		opts.MaxIdleConns = cfg.MaxIdle
	}
	if cfg.MaxOpen > 0 {
		opts.MaxOpenConns = cfg.MaxOpen
	}
	if cfg.MaxLifetime > 0 {
		opts.ConnMaxLifetime = cfg.MaxLifetime
	}
	opts.Logger = logger
	return opts
}

// NewGORMStore opens a database. Connection failures are UNAVAILABLE;
// invalid options are CONFIGURATION errors.
func NewGORMStore(ctx context.Context, opts GORMOptions) (GORMStore, error) {
	const op = "storex.NewGORMStore"
	if opts.DSN == "" || opts.Driver == "" {
		return nil, errors.Configuration(op, "database driver and DSN are required", nil)
	}
	store, err := internal.NewGORMStoreFromOptions(ctx, internal.GORMOptions{
		DSN:             opts.DSN,
		Driver:          opts.Driver,
		MaxIdleConns:    opts.MaxIdleConns,
		MaxOpenConns:    opts.MaxOpenConns,
		ConnMaxLifetime: opts.ConnMaxLifetime,
		Logger:          opts.Logger,
		Plugins:         opts.Plugins,
		ConnectRetry:    opts.ConnectRetry,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.CodeUnavailable, op, err, "open %s database", opts.Driver)
	}
	return store, nil
}

// Attach registers a GORMStore and its *gorm.DB in services. The database
// is opened on first resolution. With traced set, the store resolves
// *obsx.SQLInstrumentation and installs its plugin, so obsx.Attach must have
// enabled SQL instrumentation.
func Attach(services *servicex.ServiceCollection, opts GORMOptions, traced bool) error {
	if opts.DSN == "" || opts.Driver == "" {
		return errors.Configuration("storex.Attach", "database driver and DSN are required", nil)
	}

	var ctor any = func() (GORMStore, error) {
		return NewGORMStore(context.Background(), opts)
	}
	if traced {
		ctor = func(sql *obsx.SQLInstrumentation) (GORMStore, error) {
			o := opts
			o.Plugins = append(append([]gorm.Plugin(nil), opts.Plugins...), sql.Plugin())
			return NewGORMStore(context.Background(), o)
		}
	}
	if err := servicex.AddSingleton[GORMStore](services, ctor); err != nil {
		return err
	}
	return servicex.AddSingleton[*gorm.DB](services, func(s GORMStore) *gorm.DB { return s.GetDB() })
}
