package obsx

import (
	"context"
	"sync"

	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/logx"
	"go.eggybyte.com/busnode/obsx/internal"
)

// TracerProvider owns the SDK tracer provider built from a TracingConfig and
// its exporters. It must be shut down to flush pending spans.
type TracerProvider struct {
	sdk        *sdktrace.TracerProvider
	config     TracingConfig
	propagator propagation.TextMapPropagator
	exporters  []string
	shutdown   sync.Once
	shutErr    error
}

type providerOptions struct {
	version   string
	attrs     map[string]string
	logger    log.Logger
	exporters []sdktrace.SpanExporter
}

// ProviderOption configures NewTracerProvider.
type ProviderOption func(*providerOptions)

// WithServiceVersion sets service.version on the resource.
func WithServiceVersion(v string) ProviderOption {
	return func(o *providerOptions) { o.version = v }
}

// WithResourceAttrs adds resource attributes.
func WithResourceAttrs(attrs map[string]string) ProviderOption {
	return func(o *providerOptions) { o.attrs = attrs }
}

// WithTracerLogger logs exporter setup and SDK errors.
func WithTracerLogger(l log.Logger) ProviderOption {
	return func(o *providerOptions) { o.logger = l }
}

// WithSpanExporter adds an exporter that receives spans synchronously, in
// addition to those in the config.
func WithSpanExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) { o.exporters = append(o.exporters, exp) }
}

// NewTracerProvider validates cfg and builds one batch span processor per
// configured exporter. Exporters are independent: there is no fallback from
// one to another.
func NewTracerProvider(ctx context.Context, cfg TracingConfig, opts ...ProviderOption) (*TracerProvider, error) {
	const op = "obsx.NewTracerProvider"

	o := providerOptions{logger: log.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := internal.NewResource(ctx, internal.ResourceOptions{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: o.version,
		ResourceAttrs:  o.attrs,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfiguration, op, err)
	}

	sdkOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	var names []string
	var built []sdktrace.SpanExporter
	for _, e := range cfg.Exporters {
		exp, err := newExporter(ctx, e)
		if err != nil {
			shutdownExporters(ctx, built, o.logger)
			return nil, errors.Wrap(errors.CodeConfiguration, op, err)
		}
		built = append(built, exp)
		sdkOpts = append(sdkOpts, sdktrace.WithBatcher(exp))
		names = append(names, e.String())
		o.logger.Debug("trace exporter configured",
			log.Str("exporter", string(e.Kind)),
			log.Str("target", e.Target()),
			log.Str("service", e.ServiceName),
		)
	}
	for _, exp := range o.exporters {
		sdkOpts = append(sdkOpts, sdktrace.WithSyncer(exp))
	}

	return &TracerProvider{
		sdk:    sdktrace.NewTracerProvider(sdkOpts...),
		config: cfg,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
			jaeger.Jaeger{},
		),
		exporters: names,
	}, nil
}

// shutdownExporters releases exporters built before a later one failed.
func shutdownExporters(ctx context.Context, exps []sdktrace.SpanExporter, logger log.Logger) {
	for _, exp := range exps {
		if err := exp.Shutdown(ctx); err != nil {
			logger.Warn("trace exporter shutdown failed", log.Err(err))
		}
	}
}

var newExporter = buildExporter

func buildExporter(ctx context.Context, e ExporterConfig) (sdktrace.SpanExporter, error) {
	switch e.Kind {
	case ExporterZipkin:
		return internal.NewZipkinExporter(e.Endpoint)
	case ExporterJaeger, ExporterOTLP:
		return internal.NewOTLPExporter(ctx, e.Target(), e.Insecure)
	default:
		return nil, errors.Newf(errors.CodeConfiguration, "unknown exporter kind %q", e.Kind)
	}
}

// Config returns the config the provider was built from.
func (p *TracerProvider) Config() TracingConfig { return p.config }

// Exporters describes the configured exporters, e.g. "zipkin(http://...)".
func (p *TracerProvider) Exporters() []string {
	return append([]string(nil), p.exporters...)
}

// SDK returns the underlying SDK provider.
func (p *TracerProvider) SDK() *sdktrace.TracerProvider { return p.sdk }

// Tracer returns a named tracer.
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return p.sdk.Tracer(name, opts...)
}

// Propagator returns the W3C trace context, baggage and Jaeger propagator.
func (p *TracerProvider) Propagator() propagation.TextMapPropagator { return p.propagator }

// Install makes the provider and its propagator the process globals and
// routes SDK errors to logger.
func (p *TracerProvider) Install(logger log.Logger) {
	if logger == nil {
		logger = log.Nop()
	}
	otel.SetTracerProvider(p.sdk)
	otel.SetTextMapPropagator(p.propagator)
	otel.SetLogger(logx.Logr(logger.With(log.Str("component", "otel"))))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Error(err, "telemetry error")
	}))
}

// ForceFlush exports all ended spans.
func (p *TracerProvider) ForceFlush(ctx context.Context) error {
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops every exporter. Later calls return the first
// result.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	p.shutdown.Do(func() {
		p.shutErr = p.sdk.Shutdown(ctx)
	})
	return p.shutErr
}
