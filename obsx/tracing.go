package obsx

import (
	"fmt"
	"net"
	"strconv"

	"go.eggybyte.com/busnode/core/errors"
)

// ExporterKind names a trace backend.
type ExporterKind string

const (
	ExporterZipkin ExporterKind = "zipkin"
	ExporterJaeger ExporterKind = "jaeger"
	ExporterOTLP   ExporterKind = "otlp"
)

// DefaultJaegerPort is the Jaeger collector's OTLP/gRPC port.
const DefaultJaegerPort = 4317

// ExporterConfig describes one trace exporter.
type ExporterConfig struct {
	Kind ExporterKind
	// Endpoint is the Zipkin collector URL or the OTLP host:port.
	Endpoint string
	// Host and Port address a Jaeger collector.
	Host string
	Port int
	// ServiceName is the name spans are reported under.
	ServiceName string
	Insecure    bool
}

// Target returns the address the exporter sends to.
func (e ExporterConfig) Target() string {
	if e.Kind == ExporterJaeger {
		return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	}
	return e.Endpoint
}

func (e ExporterConfig) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Target())
}

// Subsystem names an instrumented library.
type Subsystem string

const (
	SubsystemMessaging Subsystem = "messaging"
	SubsystemSQL       Subsystem = "sql"
)

// Capture selects optional payloads recorded on spans.
type Capture uint8

const (
	CaptureMessageBody Capture = 1 << iota
	CaptureCommandText
)

// InstrumentationConfig enables tracing for a subsystem.
type InstrumentationConfig struct {
	Subsystem Subsystem
	Capture   Capture
}

// TracingConfig is the composed telemetry setup of a node. Every exporter
// reports under ServiceName.
type TracingConfig struct {
	ServiceName     string
	Exporters       []ExporterConfig
	Instrumentation []InstrumentationConfig
	SampleRatio     float64
}

// Instrumented reports whether the subsystem is enabled.
func (c TracingConfig) Instrumented(sub Subsystem) bool {
	for _, ic := range c.Instrumentation {
		if ic.Subsystem == sub {
			return true
		}
	}
	return false
}

// Captures reports whether the subsystem records the given payload.
func (c TracingConfig) Captures(sub Subsystem, flag Capture) bool {
	for _, ic := range c.Instrumentation {
		if ic.Subsystem == sub && ic.Capture&flag != 0 {
			return true
		}
	}
	return false
}

// ServiceNames returns the service name of every exporter in order.
func (c TracingConfig) ServiceNames() []string {
	names := make([]string, len(c.Exporters))
	for i, e := range c.Exporters {
		names[i] = e.ServiceName
	}
	return names
}

// Validate checks that the config is usable and that every exporter carries
// the node's service name.
func (c TracingConfig) Validate() error {
	const op = "obsx.TracingConfig.Validate"
	if c.ServiceName == "" {
		return errors.Configuration(op, "tracing service name is required", nil)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.Configuration(op, fmt.Sprintf("sample ratio %v is outside [0, 1]", c.SampleRatio), nil)
	}
	for _, e := range c.Exporters {
		if e.ServiceName != c.ServiceName {
			return errors.Configuration(op,
				fmt.Sprintf("exporter %s reports as %q, want %q", e, e.ServiceName, c.ServiceName), nil)
		}
		switch e.Kind {
		case ExporterZipkin, ExporterOTLP:
			if e.Endpoint == "" {
				return errors.Configuration(op, fmt.Sprintf("%s exporter endpoint is required", e.Kind), nil)
			}
		case ExporterJaeger:
			if e.Host == "" || e.Port <= 0 || e.Port > 65535 {
				return errors.Configuration(op, fmt.Sprintf("jaeger exporter address %q is invalid", e.Target()), nil)
			}
		default:
			return errors.Configuration(op, fmt.Sprintf("unknown exporter kind %q", e.Kind), nil)
		}
	}
	return nil
}

// TracingOption adds to a TracingConfig.
type TracingOption func(*TracingConfig)

// WithZipkinExporter sends spans to a Zipkin v2 collector URL.
func WithZipkinExporter(endpoint string) TracingOption {
	return func(c *TracingConfig) {
		c.Exporters = append(c.Exporters, ExporterConfig{Kind: ExporterZipkin, Endpoint: endpoint})
	}
}

// WithJaegerExporter sends spans to a Jaeger collector. Port 0 means
// DefaultJaegerPort.
func WithJaegerExporter(host string, port int) TracingOption {
	if port == 0 {
		port = DefaultJaegerPort
	}
	return func(c *TracingConfig) {
		c.Exporters = append(c.Exporters, ExporterConfig{Kind: ExporterJaeger, Host: host, Port: port, Insecure: true})
	}
}

// WithOTLPExporter sends spans to an OTLP/gRPC collector at host:port.
func WithOTLPExporter(endpoint string, insecure bool) TracingOption {
	return func(c *TracingConfig) {
		c.Exporters = append(c.Exporters, ExporterConfig{Kind: ExporterOTLP, Endpoint: endpoint, Insecure: insecure})
	}
}

// WithMessagingInstrumentation traces message send and receive.
func WithMessagingInstrumentation(captureBody bool) TracingOption {
	return withInstrumentation(SubsystemMessaging, captureBody, CaptureMessageBody)
}

// WithSQLInstrumentation traces SQL statements issued through GORM.
func WithSQLInstrumentation(captureText bool) TracingOption {
	return withInstrumentation(SubsystemSQL, captureText, CaptureCommandText)
}

func withInstrumentation(sub Subsystem, capture bool, flag Capture) TracingOption {
	return func(c *TracingConfig) {
		ic := InstrumentationConfig{Subsystem: sub}
		if capture {
			ic.Capture = flag
		}
		for i := range c.Instrumentation {
			if c.Instrumentation[i].Subsystem == sub {
				c.Instrumentation[i] = ic
				return
			}
		}
		c.Instrumentation = append(c.Instrumentation, ic)
	}
}

// WithSampleRatio samples the given fraction of root traces.
func WithSampleRatio(r float64) TracingOption {
	return func(c *TracingConfig) { c.SampleRatio = r }
}

// ComposeTracing builds the tracing config of the node named identity. The
// identity is applied to the config and to every exporter after the options
// run, so all spans are reported under the endpoint name.
func ComposeTracing(identity string, opts ...TracingOption) TracingConfig {
	cfg := TracingConfig{SampleRatio: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.ServiceName = identity
	for i := range cfg.Exporters {
		cfg.Exporters[i].ServiceName = identity
	}
	return cfg
}
