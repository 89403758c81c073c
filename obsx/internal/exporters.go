package internal

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/zipkin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewZipkinExporter creates an exporter posting span batches to a Zipkin
// v2 collector URL. The Zipkin local endpoint name comes from the resource
// service.name.
func NewZipkinExporter(collectorURL string) (sdktrace.SpanExporter, error) {
	exp, err := zipkin.New(collectorURL)
	if err != nil {
		return nil, fmt.Errorf("create zipkin exporter for %s: %w", collectorURL, err)
	}
	return exp, nil
}

// NewOTLPExporter creates an OTLP/gRPC span exporter for host:port. The gRPC
// connection is established lazily, so an unreachable collector does not
// fail construction.
func NewOTLPExporter(ctx context.Context, target string, insecure bool) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter for %s: %w", target, err)
	}
	return exp, nil
}
