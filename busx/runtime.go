package busx

import (
	"context"
	"fmt"
	"sync"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/servicex"
)

// Endpoint is a started bus endpoint.
type Endpoint interface {
	Name() EndpointIdentity
	Stop(ctx context.Context) error
}

// Runtime starts endpoints. Message handlers and other dependencies are
// resolved through the resolver.
type Runtime interface {
	Start(ctx context.Context, cfg *EndpointConfiguration, services servicex.Resolver) (Endpoint, error)
}

// RuntimeFunc adapts a function to Runtime.
type RuntimeFunc func(ctx context.Context, cfg *EndpointConfiguration, services servicex.Resolver) (Endpoint, error)

func (f RuntimeFunc) Start(ctx context.Context, cfg *EndpointConfiguration, services servicex.Resolver) (Endpoint, error) {
	return f(ctx, cfg, services)
}

// StandbyRuntime starts endpoints that hold no transport connection. It is
// used when no transport package is linked into the binary.
type StandbyRuntime struct {
	Logger log.Logger
}

func (r StandbyRuntime) Start(ctx context.Context, cfg *EndpointConfiguration, _ servicex.Resolver) (Endpoint, error) {
	if cfg == nil {
		return nil, errors.EndpointConfiguration("busx.StandbyRuntime.Start", "", fmt.Errorf("configuration is nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.EndpointConfiguration("busx.StandbyRuntime.Start", string(cfg.Name), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeAborted, "busx.StandbyRuntime.Start", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.Str("endpoint", string(cfg.Name)))
	logger.Info("endpoint started",
		log.Str("transport", cfg.Transport),
		log.Int("concurrency", cfg.Concurrency),
		log.Str("error_queue", cfg.ErrorQueue),
		log.Str("audit_queue", cfg.AuditQueue),
	)
	return &standbyEndpoint{name: cfg.Name, logger: logger}, nil
}

type standbyEndpoint struct {
	name   EndpointIdentity
	logger log.Logger
	once   sync.Once
}

func (e *standbyEndpoint) Name() EndpointIdentity { return e.name }

func (e *standbyEndpoint) Stop(context.Context) error {
	e.once.Do(func() { e.logger.Info("endpoint stopped") })
	return nil
}

// EndpointService runs an endpoint as a lifecycle service: Start hands the
// configuration to the runtime, Stop stops the started endpoint.
type EndpointService struct {
	runtime  Runtime
	config   *EndpointConfiguration
	services servicex.Resolver

	mu       sync.Mutex
	endpoint Endpoint
}

// NewEndpointService creates a service for cfg.
func NewEndpointService(rt Runtime, cfg *EndpointConfiguration, services servicex.Resolver) *EndpointService {
	return &EndpointService{runtime: rt, config: cfg, services: services}
}

// Start starts the endpoint. Starting a started service is an error.
func (s *EndpointService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endpoint != nil {
		return errors.Newf(errors.CodeAlreadyExists, "endpoint %s already started", s.config.Name)
	}
	ep, err := s.runtime.Start(ctx, s.config, s.services)
	if err != nil {
		return err
	}
	s.endpoint = ep
	return nil
}

// Stop stops the endpoint if it was started.
func (s *EndpointService) Stop(ctx context.Context) error {
	s.mu.Lock()
	ep := s.endpoint
	s.endpoint = nil
	s.mu.Unlock()
	if ep == nil {
		return nil
	}
	return ep.Stop(ctx)
}

// Endpoint returns the running endpoint, or nil.
func (s *EndpointService) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}
