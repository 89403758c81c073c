package obsx

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"go.eggybyte.com/busnode/obsx/internal"
)

// MetricsOptions holds configuration for the metrics provider.
type MetricsOptions struct {
	ServiceName    string            // endpoint identity
	ServiceVersion string            // service version
	ResourceAttrs  map[string]string // additional resource attributes
}

// Metrics manages an OpenTelemetry meter provider exported through a local
// Prometheus registry. It must be shut down when no longer needed.
type Metrics struct {
	impl *internal.MeterProvider

	assemblies    api.Int64Counter
	registrations api.Int64Counter
	duration      api.Float64Histogram
}

// BootstrapStats summarizes one bootstrap run.
type BootstrapStats struct {
	Endpoint      string
	Assemblies    int
	Registrations int
	Duration      time.Duration
}

// NewMetrics creates the metrics provider and installs it as the global
// meter provider.
//
// Example:
//
//	m, err := obsx.NewMetrics(ctx, obsx.MetricsOptions{ServiceName: "Divergent.ITOps"})
//	if err != nil {
//		return err
//	}
//	defer m.Shutdown(ctx)
//	mux.Handle("/metrics", m.PrometheusHandler())
func NewMetrics(ctx context.Context, opts MetricsOptions) (*Metrics, error) {
	impl, err := internal.NewMeterProvider(ctx, internal.ResourceOptions{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.ServiceVersion,
		ResourceAttrs:  opts.ResourceAttrs,
	})
	if err != nil {
		return nil, err
	}

	m := &Metrics{impl: impl}
	meter := impl.MeterProvider.Meter("go.eggybyte.com/busnode/bootstrap")
	if m.assemblies, err = meter.Int64Counter("busnode_bootstrap_assemblies",
		api.WithDescription("Assemblies loaded from the discovery directory")); err != nil {
		return nil, err
	}
	if m.registrations, err = meter.Int64Counter("busnode_bootstrap_registrations",
		api.WithDescription("Service registrations produced by scanning and registrars")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("busnode_bootstrap_duration_seconds",
		api.WithDescription("Time spent bootstrapping the node"),
		api.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// MeterProvider returns the OpenTelemetry meter provider.
func (m *Metrics) MeterProvider() *metric.MeterProvider {
	return m.impl.MeterProvider
}

// PrometheusHandler serves the collected metrics for scraping.
func (m *Metrics) PrometheusHandler() http.Handler {
	return m.impl.PrometheusHandler()
}

// Meter returns a named meter for custom instruments.
func (m *Metrics) Meter(name string) api.Meter {
	return m.impl.MeterProvider.Meter(name)
}

// RecordBootstrap adds the outcome of a bootstrap run.
func (m *Metrics) RecordBootstrap(ctx context.Context, s BootstrapStats) {
	attrs := api.WithAttributes(attribute.String("endpoint", s.Endpoint))
	m.assemblies.Add(ctx, int64(s.Assemblies), attrs)
	m.registrations.Add(ctx, int64(s.Registrations), attrs)
	m.duration.Record(ctx, s.Duration.Seconds(), attrs)
}

// EnableRuntimeMetrics starts collecting goroutine, memory, GC and uptime
// metrics.
func (m *Metrics) EnableRuntimeMetrics(ctx context.Context) error {
	return internal.EnableRuntimeMetrics(ctx, m.impl.MeterProvider)
}

// RegisterDBMetrics reports the pool statistics of db labelled with name.
func (m *Metrics) RegisterDBMetrics(name string, db *sql.DB) error {
	return internal.RegisterDBMetrics(name, db, m.impl.MeterProvider)
}

// RegisterGORMMetrics reports the pool behind a GORM handle.
func (m *Metrics) RegisterGORMMetrics(name string, gormDB interface{ DB() (*sql.DB, error) }) error {
	return internal.RegisterGORMMetrics(name, gormDB, m.impl.MeterProvider)
}

// Shutdown flushes and stops the provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.impl.Shutdown(ctx)
}
