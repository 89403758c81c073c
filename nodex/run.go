package nodex

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/configx"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/logx"
	"go.eggybyte.com/busnode/obsx"
	"go.eggybyte.com/busnode/runtimex"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/storex"
)

// Run loads configuration, bootstraps the node, builds the container and
// hosts the endpoint until ctx is cancelled or the process receives SIGINT
// or SIGTERM.
//
// Bootstrap errors are returned before the endpoint is started.
//
// Example:
//
//	err := nodex.Run(ctx,
//		nodex.WithEndpointName("Divergent.ITOps"),
//		nodex.WithConfigFile("itops.yaml"),
//	)
func Run(ctx context.Context, opts ...Option) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := &node{s: newSettings(opts)}
	defer n.cleanup()

	steps := []func(context.Context) error{
		n.initializeConfig,
		n.initializeLogger,
		n.bootstrap,
		n.initializeDatabase,
		n.buildContainer,
		n.initializeMetrics,
		n.initializeTracing,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			if n.logger != nil {
				n.logger.Error(err, "node startup failed", log.Str("endpoint", n.s.endpoint.String()))
			}
			return err
		}
	}
	return n.serve(ctx)
}

// node holds the state Run builds up step by step.
type node struct {
	s      *settings
	logger log.Logger
	config configx.Manager
	node   configx.NodeConfig

	result    *Result
	container *servicex.Container
	metrics   *obsx.Metrics
	tracer    *obsx.TracerProvider
	storage   *storex.Registry

	// stopped when startup fails before serve takes over
	pending []func(context.Context) error
}

func (n *node) initializeConfig(ctx context.Context) error {
	bootLogger := n.s.logger
	if bootLogger == nil {
		bootLogger = logx.New(logx.WithFormat(logx.FormatLogfmt))
	}
	mgr, err := configx.NewManager(ctx, configx.Options{
		Logger:  bootLogger,
		Sources: configx.NodeSources(n.s.configFile, n.s.overrides),
	})
	if err != nil {
		return err
	}
	if err := mgr.Bind(&n.node); err != nil {
		return err
	}
	n.config = mgr
	return nil
}

func (n *node) initializeLogger(context.Context) error {
	if n.s.logger != nil {
		n.logger = n.s.logger
		return nil
	}
	level, err := logx.ParseLevel(n.node.LogLevel)
	if err != nil {
		return errors.Configuration("nodex.Run", "log level", err)
	}
	format, err := logx.ParseFormat(n.node.LogFormat)
	if err != nil {
		return errors.Configuration("nodex.Run", "log format", err)
	}
	n.logger = logx.New(logx.WithFormat(format), logx.WithLevel(level))
	n.s.logger = n.logger
	return nil
}

// bootstrap fills what the options left unset from configuration and runs
// the bootstrap sequence.
func (n *node) bootstrap(ctx context.Context) error {
	s := n.s
	if s.discoveryPath == "" {
		s.discoveryPath = n.node.Plugins.Path
		s.suffix = n.node.Plugins.Suffix
	}
	s.skipFailed = s.skipFailed || n.node.Plugins.SkipFailed
	if s.environment == "" {
		s.environment = n.node.Env
	}
	if s.config == nil {
		s.config = n.config
	}
	if len(s.tracing) == 0 {
		s.tracing = TracingOptions(n.node.Tracing)
	}
	s.providerOptions = append([]obsx.ProviderOption{
		obsx.WithServiceVersion(n.node.ServiceVersion),
		obsx.WithTracerLogger(n.logger),
	}, s.providerOptions...)

	if err := s.validate(); err != nil {
		return err
	}
	res, err := (&Bootstrapper{s: s}).Bootstrap(ctx)
	if err != nil {
		return err
	}
	n.result = res
	return nil
}

func (n *node) initializeDatabase(context.Context) error {
	if n.node.Database.DSN == "" {
		return nil
	}
	traced := n.result.Tracing.Instrumented(obsx.SubsystemSQL)
	return storex.Attach(n.result.Services, storex.OptionsFromConfig(n.node.Database, n.logger), traced)
}

func (n *node) buildContainer(context.Context) error {
	c, err := n.result.Services.Build()
	if err != nil {
		return errors.Wrap(errors.CodeConfiguration, "nodex.Run", err)
	}
	n.container = c
	return nil
}

func (n *node) initializeMetrics(ctx context.Context) error {
	m, err := obsx.NewMetrics(ctx, obsx.MetricsOptions{
		ServiceName:    n.s.endpoint.String(),
		ServiceVersion: n.node.ServiceVersion,
	})
	if err != nil {
		return err
	}
	n.metrics = m
	n.pending = append(n.pending, m.Shutdown)

	m.RecordBootstrap(ctx, obsx.BootstrapStats{
		Endpoint:      n.s.endpoint.String(),
		Assemblies:    len(n.result.Assemblies),
		Registrations: n.result.Services.Len(),
		Duration:      n.result.Duration,
	})
	if err := m.EnableRuntimeMetrics(ctx); err != nil {
		return err
	}

	if n.node.Database.DSN == "" {
		return nil
	}
	store, err := servicex.ResolveTyped[storex.GORMStore](n.container)
	if err != nil {
		return err
	}
	n.storage = storex.NewRegistry()
	if err := n.storage.Register("default", store); err != nil {
		return err
	}
	n.pending = append(n.pending, func(context.Context) error { return n.storage.Close() })
	return m.RegisterGORMMetrics("default", store.GetDB())
}

func (n *node) initializeTracing(context.Context) error {
	tp, err := servicex.ResolveTyped[*obsx.TracerProvider](n.container)
	if err != nil {
		return err
	}
	tp.Install(n.logger)
	n.tracer = tp
	n.pending = append(n.pending, tp.Shutdown)
	n.logger.Info("tracing installed", log.Str("exporters", strings.Join(tp.Exporters(), ",")))
	return nil
}

// serve hands the started components to the runtime. From here on the
// runtime owns their shutdown.
func (n *node) serve(ctx context.Context) error {
	rt := n.s.runtime
	if rt == nil {
		rt = busx.StandbyRuntime{Logger: n.logger}
	}

	services := []runtimex.Service{
		runtimex.ServiceFuncs{StopFunc: n.metrics.Shutdown},
		runtimex.ServiceFuncs{StopFunc: n.tracer.Shutdown},
	}
	var checks []runtimex.HealthChecker
	if n.storage != nil {
		services = append(services, runtimex.ServiceFuncs{
			StartFunc: n.storage.Ping,
			StopFunc:  func(context.Context) error { return n.storage.Close() },
		})
		checks = append(checks, n.storage)
	}
	services = append(services, busx.NewEndpointService(rt, n.result.Endpoint, n.container))
	n.pending = nil

	return runtimex.Run(ctx, services, runtimex.Options{
		Logger:          n.logger,
		Health:          &runtimex.Endpoint{Addr: n.node.HealthPort},
		Metrics:         &runtimex.Endpoint{Addr: n.node.MetricsPort, Handler: n.metrics.PrometheusHandler()},
		HealthCheckers:  checks,
		ShutdownTimeout: n.node.ShutdownTimeout,
	})
}

func (n *node) cleanup() {
	if len(n.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.node.ShutdownTimeout)
	defer cancel()
	for i := len(n.pending) - 1; i >= 0; i-- {
		if err := n.pending[i](ctx); err != nil && n.logger != nil {
			n.logger.Warn("cleanup after failed startup", log.Err(err))
		}
	}
}

// TracingOptions maps the tracing section of the node configuration to
// composer options. Empty endpoints disable their exporter.
func TracingOptions(c configx.TracingConfig) []obsx.TracingOption {
	var opts []obsx.TracingOption
	if c.ZipkinEndpoint != "" {
		opts = append(opts, obsx.WithZipkinExporter(c.ZipkinEndpoint))
	}
	if c.JaegerHost != "" {
		opts = append(opts, obsx.WithJaegerExporter(c.JaegerHost, c.JaegerPort))
	}
	if c.OTLPEndpoint != "" {
		opts = append(opts, obsx.WithOTLPExporter(c.OTLPEndpoint, true))
	}
	return append(opts,
		obsx.WithMessagingInstrumentation(c.CaptureMessageBody),
		obsx.WithSQLInstrumentation(c.CaptureCommandText),
		obsx.WithSampleRatio(c.SampleRatio),
	)
}
