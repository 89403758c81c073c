// Package runtimex hosts a node's long-running services together with its
// health and metrics endpoints.
//
// Overview:
//   - Responsibility: Start services in order, serve health/metrics, shut down in reverse order
//   - Key Types: Service, Options, Runtime
//   - Concurrency Model: Servers run in an errgroup; services start and stop sequentially
//   - Error Semantics: A failed start stops the services already started and is returned
//
// Usage:
//
//	err := runtimex.Run(ctx, []runtimex.Service{tracing, endpoint}, runtimex.Options{
//		Logger:  logger,
//		Health:  &runtimex.Endpoint{Addr: ":8081"},
//		Metrics: &runtimex.Endpoint{Addr: ":9091", Handler: metrics.PrometheusHandler()},
//	})
package runtimex

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/runtimex/internal"
)

// Service is a component with a start/stop lifecycle.
type Service interface {
	// Start begins the service. The context bounds startup only.
	Start(ctx context.Context) error
	// Stop shuts the service down within the context deadline.
	Stop(ctx context.Context) error
}

// HealthChecker is a named readiness check.
type HealthChecker = internal.HealthChecker

// Endpoint is a listen address. Handler is used by the metrics endpoint.
type Endpoint struct {
	Addr    string
	Handler http.Handler
}

// Options holds configuration for the runtime.
type Options struct {
	Logger          log.Logger
	Health          *Endpoint       // serves /health, /ready and /live
	Metrics         *Endpoint       // serves Handler at /metrics
	HealthCheckers  []HealthChecker // in addition to RegisterHealthChecker
	ShutdownTimeout time.Duration   // default 15s
}

// ServiceFuncs adapts a pair of functions to Service. Either may be nil.
type ServiceFuncs struct {
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (s ServiceFuncs) Start(ctx context.Context) error {
	if s.StartFunc == nil {
		return nil
	}
	return s.StartFunc(ctx)
}

func (s ServiceFuncs) Stop(ctx context.Context) error {
	if s.StopFunc == nil {
		return nil
	}
	return s.StopFunc(ctx)
}

// Runtime is a configured, not yet running host.
type Runtime struct {
	impl *internal.Runtime
}

// New validates opts and prepares a runtime.
func New(services []Service, opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 15 * time.Second
	}

	internalServices := make([]internal.Service, len(services))
	for i, service := range services {
		internalServices[i] = service
	}
	rt := internal.NewRuntime(opts.Logger, internalServices, shutdownTimeout)

	if opts.Health != nil {
		rt.AddServer("health", opts.Health.Addr,
			internal.HealthHandler(rt.ReadyFlag(), opts.HealthCheckers, 2*time.Second))
	}
	if opts.Metrics != nil {
		handler := opts.Metrics.Handler
		if handler == nil {
			handler = http.NotFoundHandler()
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		rt.AddServer("metrics", opts.Metrics.Addr, mux)
	}
	return &Runtime{impl: rt}, nil
}

// Run blocks until ctx is cancelled or a server fails.
func (r *Runtime) Run(ctx context.Context) error {
	return r.impl.Run(ctx)
}

// Ready is closed once every service has started and servers are listening.
func (r *Runtime) Ready() <-chan struct{} { return r.impl.Ready() }

// HealthAddr returns the bound health address once Ready is closed.
func (r *Runtime) HealthAddr() string { return r.impl.Addr("health") }

// MetricsAddr returns the bound metrics address once Ready is closed.
func (r *Runtime) MetricsAddr() string { return r.impl.Addr("metrics") }

// Run starts services and servers and blocks until ctx is cancelled.
// Services are stopped in reverse start order.
func Run(ctx context.Context, services []Service, opts Options) error {
	rt, err := New(services, opts)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// RegisterHealthChecker adds a process-wide check to every runtime.
func RegisterHealthChecker(checker HealthChecker) {
	internal.RegisterHealthChecker(checker)
}
