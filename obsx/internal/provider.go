// Package internal provides internal implementation for the obsx package.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InstanceID identifies this process in every resource built by obsx.
var InstanceID = uuid.NewString()

// ResourceOptions describes the resource shared by metrics and traces.
type ResourceOptions struct {
	ServiceName    string
	ServiceVersion string
	ResourceAttrs  map[string]string
}

// NewResource builds the OpenTelemetry resource for a node. The service name
// is the endpoint identity.
func NewResource(ctx context.Context, opts ResourceOptions) (*resource.Resource, error) {
	if opts.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		attribute.String("service.instance.id", InstanceID),
	}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.ServiceVersion))
	}

	keys := make([]string, 0, len(opts.ResourceAttrs))
	for k := range opts.ResourceAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, opts.ResourceAttrs[k]))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// MeterProvider manages an OpenTelemetry meter provider with Prometheus export.
type MeterProvider struct {
	MeterProvider      *metric.MeterProvider
	prometheusRegistry *promclient.Registry
}

// NewMeterProvider creates a meter provider whose readings are served by
// PrometheusHandler and installs it as the global meter provider.
func NewMeterProvider(ctx context.Context, opts ResourceOptions) (*MeterProvider, error) {
	res, err := NewResource(ctx, opts)
	if err != nil {
		return nil, err
	}

	promRegistry := promclient.NewRegistry()
	promExporter, err := prometheus.New(
		prometheus.WithRegisterer(promRegistry),
		prometheus.WithoutUnits(),
		prometheus.WithoutScopeInfo(),
		prometheus.WithoutCounterSuffixes(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)
	otel.SetMeterProvider(mp)

	return &MeterProvider{
		MeterProvider:      mp,
		prometheusRegistry: promRegistry,
	}, nil
}

// PrometheusHandler serves the registry in Prometheus text or OpenMetrics format.
func (p *MeterProvider) PrometheusHandler() http.Handler {
	if p.prometheusRegistry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("# metrics not available\n"))
		})
	}
	return promhttp.HandlerFor(p.prometheusRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Shutdown flushes and stops the meter provider, bounded to five seconds.
func (p *MeterProvider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}
	return nil
}
