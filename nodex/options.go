package nodex

import (
	"reflect"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/configx"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/obsx"
	"go.eggybyte.com/busnode/pluginx"
)

// Option is a functional option for configuring the node.
type Option func(*settings)

type settings struct {
	endpoint    busx.EndpointIdentity
	environment string

	discoveryPath string
	suffix        string
	loader        pluginx.Loader
	skipFailed    bool
	contracts     []reflect.Type

	logger     log.Logger
	config     configx.Manager
	properties map[string]any

	tracing         []obsx.TracingOption
	providerOptions []obsx.ProviderOption
	hooks           []busx.ConfigureFunc

	// Run only.
	configFile string
	overrides  map[string]string
	runtime    busx.Runtime
}

func newSettings(opts []Option) *settings {
	s := &settings{
		suffix:     pluginx.DefaultSuffix,
		properties: map[string]any{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// WithEndpointName sets the endpoint identity. It names the bus endpoint and
// every trace exporter.
func WithEndpointName(name busx.EndpointIdentity) Option {
	return func(s *settings) { s.endpoint = name }
}

// WithEnvironment sets the environment reported to registrars.
func WithEnvironment(env string) Option {
	return func(s *settings) { s.environment = env }
}

// WithDiscovery sets the provider directory and the assembly file suffix.
// A relative path is resolved against the executable's directory. An empty
// suffix keeps pluginx.DefaultSuffix.
func WithDiscovery(path, suffix string) Option {
	return func(s *settings) {
		s.discoveryPath = path
		if suffix != "" {
			s.suffix = suffix
		}
	}
}

// WithLoader replaces the default catalog-then-plugin assembly loader.
func WithLoader(l pluginx.Loader) Option {
	return func(s *settings) { s.loader = l }
}

// WithSkipFailed logs and skips assemblies that fail to load instead of
// aborting the bootstrap.
func WithSkipFailed(skip bool) Option {
	return func(s *settings) { s.skipFailed = skip }
}

// WithContracts adds host-declared interfaces to the provider scan.
func WithContracts(contracts ...reflect.Type) Option {
	return func(s *settings) { s.contracts = append(s.contracts, contracts...) }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithConfig hands a configuration manager to registrars.
func WithConfig(mgr configx.Manager) Option {
	return func(s *settings) { s.config = mgr }
}

// WithProperty adds a value to the host context seen by registrars.
func WithProperty(key string, value any) Option {
	return func(s *settings) { s.properties[key] = value }
}

// WithTracing adds tracing options. The endpoint identity is applied on top.
func WithTracing(opts ...obsx.TracingOption) Option {
	return func(s *settings) { s.tracing = append(s.tracing, opts...) }
}

// WithTracerProviderOptions passes options to the tracer provider built from
// the container.
func WithTracerProviderOptions(opts ...obsx.ProviderOption) Option {
	return func(s *settings) { s.providerOptions = append(s.providerOptions, opts...) }
}

// WithEndpointConfig adds hooks that customize the endpoint configuration.
func WithEndpointConfig(hooks ...busx.ConfigureFunc) Option {
	return func(s *settings) { s.hooks = append(s.hooks, hooks...) }
}

// WithConfigFile adds a YAML, TOML or JSON file below environment variables.
func WithConfigFile(path string) Option {
	return func(s *settings) { s.configFile = path }
}

// WithOverrides sets configuration values that win over file and environment.
func WithOverrides(values map[string]string) Option {
	return func(s *settings) {
		if s.overrides == nil {
			s.overrides = map[string]string{}
		}
		for k, v := range values {
			s.overrides[k] = v
		}
	}
}

// WithRuntime sets the bus runtime the endpoint is started on. The default
// is busx.StandbyRuntime.
func WithRuntime(rt busx.Runtime) Option {
	return func(s *settings) { s.runtime = rt }
}
