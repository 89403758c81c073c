// Package obsx composes the telemetry of a bus node: distributed tracing
// with Zipkin and Jaeger exporters, messaging and SQL instrumentation, and
// Prometheus metrics.
//
// # Overview
//
// ComposeTracing builds a TracingConfig for an endpoint identity. The
// identity becomes the service name of the config and of every exporter, so
// spans from all backends line up under the endpoint name. NewTracerProvider
// turns the config into an OpenTelemetry SDK provider and Attach registers it,
// lazily, in a servicex.ServiceCollection.
//
// Jaeger is reached over OTLP/gRPC; current Jaeger collectors accept OTLP on
// port 4317.
//
// # Usage
//
//	cfg := obsx.ComposeTracing("Divergent.ITOps",
//		obsx.WithZipkinExporter("http://localhost:9411/api/v2/spans"),
//		obsx.WithJaegerExporter("localhost", 4317),
//		obsx.WithMessagingInstrumentation(true),
//		obsx.WithSQLInstrumentation(true),
//	)
//	if err := obsx.Attach(services, cfg); err != nil {
//		return err
//	}
//
//	metrics, err := obsx.NewMetrics(ctx, obsx.MetricsOptions{ServiceName: "Divergent.ITOps"})
//	if err != nil {
//		return err
//	}
//	mux.Handle("/metrics", metrics.PrometheusHandler())
//
// # Layer
//
// obsx depends on core, logx and servicex.
package obsx
