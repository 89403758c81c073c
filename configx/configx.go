// Package configx loads node configuration from the environment and files.
//
// Overview:
//   - Responsibility: Merge sources, bind into structs with env/default tags, validate
//   - Key Types: Source, Manager, NodeConfig
//   - Concurrency Model: Manager reads are safe for concurrent use
//   - Error Semantics: Every load, bind or validation failure is a CONFIGURATION error
//
// Usage:
//
//	mgr, err := configx.NewManager(ctx, configx.Options{
//		Logger:  logger,
//		Sources: []configx.Source{configx.NewFileSource("node.yaml", configx.FileOptions{}), configx.NewEnvSource(configx.EnvOptions{})},
//	})
//	var cfg configx.NodeConfig
//	err = mgr.Bind(&cfg)
package configx

import (
	"context"
	"time"

	"go.eggybyte.com/busnode/configx/internal"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
)

// Source produces a flat key/value snapshot.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Manager gives access to the merged configuration.
type Manager interface {
	// Snapshot returns a copy of the current merged configuration.
	Snapshot() map[string]string

	// Value returns the value for a key and whether it exists.
	Value(key string) (string, bool)

	// Bind decodes the configuration into target using env/default tags and
	// then validates it with `validate` tags.
	Bind(target any) error
}

// Options holds configuration for the manager.
type Options struct {
	Logger  log.Logger
	Sources []Source // later sources override earlier ones
}

// EnvOptions configures environment variable source behavior.
type EnvOptions struct {
	Prefix string
}

// FileOptions configures file source behavior.
type FileOptions struct {
	Format   string // yaml, toml or json; detected from the extension when empty
	Optional bool
}

// NodeConfig is the configuration of a bus node process.
type NodeConfig struct {
	ServiceVersion  string        `env:"SERVICE_VERSION" default:"0.0.0"`
	Env             string        `env:"ENV" default:"dev"`
	LogLevel        string        `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" default:"logfmt" validate:"oneof=logfmt json"`
	HealthPort      string        `env:"HEALTH_PORT" default:":8081"`
	MetricsPort     string        `env:"METRICS_PORT" default:":9091"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`

	Plugins  PluginConfig
	Tracing  TracingConfig
	Database DatabaseConfig
}

// PluginConfig controls assembly discovery.
type PluginConfig struct {
	// Path is resolved against the executable's directory when relative.
	Path       string `env:"PLUGIN_PATH" default:"../../../Providers" validate:"required"`
	Suffix     string `env:"PLUGIN_SUFFIX" default:".Data.so" validate:"required"`
	SkipFailed bool   `env:"PLUGIN_SKIP_FAILED" default:"false"`
}

// TracingConfig lists the trace export destinations. An empty endpoint
// disables that exporter.
type TracingConfig struct {
	ZipkinEndpoint     string  `env:"ZIPKIN_ENDPOINT" default:"http://localhost:9411/api/v2/spans" validate:"omitempty,url"`
	JaegerHost         string  `env:"JAEGER_HOST" default:"localhost"`
	JaegerPort         int     `env:"JAEGER_PORT" default:"4317" validate:"gte=0,lte=65535"`
	OTLPEndpoint       string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	SampleRatio        float64 `env:"TRACE_SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
	CaptureMessageBody bool    `env:"TRACE_CAPTURE_MESSAGE_BODY" default:"true"`
	CaptureCommandText bool    `env:"TRACE_CAPTURE_COMMAND_TEXT" default:"true"`
}

// DatabaseConfig holds database connection settings used by data providers.
type DatabaseConfig struct {
	Driver      string        `env:"DB_DRIVER" default:"sqlite" validate:"oneof=mysql postgres sqlite"`
	DSN         string        `env:"DB_DSN" default:""`
	MaxIdle     int           `env:"DB_MAX_IDLE" default:"10"`
	MaxOpen     int           `env:"DB_MAX_OPEN" default:"100"`
	MaxLifetime time.Duration `env:"DB_MAX_LIFETIME" default:"1h"`
}

type manager struct {
	impl *internal.ManagerImpl
}

// NewManager creates a manager and performs the initial load.
func NewManager(ctx context.Context, opts Options) (Manager, error) {
	sources := make([]internal.Source, len(opts.Sources))
	for i, src := range opts.Sources {
		sources[i] = src
	}

	impl, err := internal.NewManager(opts.Logger, sources)
	if err != nil {
		return nil, errors.Configuration("configx.NewManager", "invalid options", err)
	}
	if err := impl.Load(ctx); err != nil {
		return nil, errors.Configuration("configx.NewManager", "load sources", err)
	}
	return &manager{impl: impl}, nil
}

func (m *manager) Snapshot() map[string]string     { return m.impl.Snapshot() }
func (m *manager) Value(key string) (string, bool) { return m.impl.Value(key) }

func (m *manager) Bind(target any) error {
	if err := m.impl.Bind(target); err != nil {
		return errors.Configuration("configx.Bind", "bind configuration", err)
	}
	return ValidateStruct(nil, target)
}

// NewEnvSource creates an environment variable configuration source.
func NewEnvSource(opts EnvOptions) Source {
	return internal.NewEnvSource(internal.EnvOptions{Prefix: opts.Prefix})
}

// NewFileSource creates a YAML, TOML or JSON file source.
func NewFileSource(path string, opts FileOptions) Source {
	return internal.NewFileSource(path, internal.FileOptions{
		Format:   opts.Format,
		Optional: opts.Optional,
	})
}

// MapSource is a fixed snapshot, mostly useful for flag overrides and tests.
type MapSource map[string]string

// Load returns a copy of the map.
func (m MapSource) Load(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// NodeSources returns the default source chain of a node: the optional
// file, then the environment, then overrides.
func NodeSources(file string, overrides map[string]string) []Source {
	var sources []Source
	if file != "" {
		sources = append(sources, NewFileSource(file, FileOptions{}))
	}
	return append(sources, NewEnvSource(EnvOptions{}), MapSource(overrides))
}

// LoadNodeConfig loads NodeSources and binds a NodeConfig.
func LoadNodeConfig(ctx context.Context, logger log.Logger, file string, overrides map[string]string) (*NodeConfig, error) {
	mgr, err := NewManager(ctx, Options{Logger: logger, Sources: NodeSources(file, overrides)})
	if err != nil {
		return nil, err
	}
	var cfg NodeConfig
	if err := mgr.Bind(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
