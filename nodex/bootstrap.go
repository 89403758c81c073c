package nodex

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/obsx"
	"go.eggybyte.com/busnode/pluginx"
	"go.eggybyte.com/busnode/servicex"
)

// Result is the outcome of a successful bootstrap.
type Result struct {
	Services   *servicex.ServiceCollection
	Endpoint   *busx.EndpointConfiguration
	Tracing    obsx.TracingConfig
	Assemblies []*pluginx.Assembly

	Providers  int      // registrations contributed by provider types
	Registrars []string // registrar types, in invocation order
	Duration   time.Duration
}

// Bootstrapper runs the bootstrap sequence of one node. It runs at most once.
type Bootstrapper struct {
	s    *settings
	used atomic.Bool
}

// New creates a Bootstrapper. The endpoint name and discovery path are
// required.
func New(opts ...Option) (*Bootstrapper, error) {
	s := newSettings(opts)
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &Bootstrapper{s: s}, nil
}

func (s *settings) validate() error {
	const op = "nodex.New"
	if s.endpoint == "" {
		return errors.Configuration(op, "endpoint name is required", nil)
	}
	if s.discoveryPath == "" {
		return errors.Configuration(op, "discovery path is required", nil)
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	if s.loader == nil {
		s.loader = pluginx.DefaultLoader()
	}
	return nil
}

// Bootstrap locates provider assemblies, registers their providers, invokes
// their registrars, attaches tracing and composes the endpoint
// configuration, in that order. The first failing step aborts the rest and
// no partial result is returned. A second call returns an ABORTED error.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Result, error) {
	const op = "nodex.Bootstrap"
	if !b.used.CompareAndSwap(false, true) {
		return nil, errors.New(errors.CodeAborted, "bootstrap already ran")
	}

	s := b.s
	start := time.Now()
	logger := s.logger.With(log.Str("endpoint", s.endpoint.String()))

	root, err := pluginx.ResolveRoot(s.discoveryPath)
	if err != nil {
		return nil, err
	}
	assemblies, err := pluginx.Locate(ctx, root, s.suffix,
		pluginx.WithLoader(s.loader),
		pluginx.WithLogger(logger),
		pluginx.WithSkipFailed(s.skipFailed),
	)
	if err != nil {
		return nil, err
	}

	services := servicex.NewServiceCollection()
	providers := pluginx.ScanProviders(assemblies, pluginx.WithContracts(s.contracts...))
	for _, d := range providers {
		if err := services.Add(d); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, op, err)
		}
	}
	logger.Info("providers registered", log.Int("registrations", len(providers)))

	host := &servicex.HostContext{
		EndpointName: s.endpoint.String(),
		Environment:  s.environment,
		ContentRoot:  root,
		Config:       s.config,
		Logger:       logger,
		Properties:   s.properties,
	}
	invoked, err := pluginx.InvokeRegistrars(assemblies, host, services)
	if err != nil {
		return nil, err
	}
	var registrars []string
	for _, t := range invoked {
		registrars = append(registrars, t.FullName())
	}
	logger.Info("registrars invoked", log.Int("registrars", len(registrars)), log.Int("registrations", services.Len()))

	tracing := obsx.ComposeTracing(s.endpoint.String(), s.tracing...)
	if err := obsx.Attach(services, tracing, s.providerOptions...); err != nil {
		return nil, err
	}
	for _, e := range tracing.Exporters {
		logger.Debug("trace exporter configured", log.Str("exporter", e.String()))
	}

	endpoint := busx.NewEndpointConfiguration(s.endpoint)
	if err := endpoint.Apply(s.hooks...); err != nil {
		return nil, err
	}

	res := &Result{
		Services:   services,
		Endpoint:   endpoint,
		Tracing:    tracing,
		Assemblies: assemblies,
		Providers:  len(providers),
		Registrars: registrars,
		Duration:   time.Since(start),
	}
	logger.Info("bootstrap complete",
		log.Int("assemblies", len(assemblies)),
		log.Int("registrations", services.Len()),
		log.Dur("duration", res.Duration),
	)
	return res, nil
}

// Bootstrap is shorthand for New followed by Bootstrap.
func Bootstrap(ctx context.Context, opts ...Option) (*Result, error) {
	b, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return b.Bootstrap(ctx)
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: %d assemblies, %d registrations", r.Endpoint.Name, len(r.Assemblies), r.Services.Len())
}
