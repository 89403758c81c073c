// Package logx provides the structured logger used by busnode, based on slog.
//
// Overview:
//   - Responsibility: logfmt/JSON output with sorted keys, level colorization and redaction
//   - Key Types: Logger (implements core/log.Logger), Option
//   - Concurrency Model: All loggers are safe for concurrent use
//   - Error Semantics: Write failures are dropped
//
// Usage:
//
//	logger := logx.New(logx.WithFormat(logx.FormatJSON), logx.WithLevel(slog.LevelDebug))
//	logger.Info("assembly loaded", log.Str("path", p))
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/logx/internal"
)

// Format specifies the output format for logs.
type Format string

const (
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

// Options configures the logger behavior.
type Options struct {
	Format           Format
	Level            slog.Leveler
	Color            bool
	Writer           io.Writer // default os.Stderr
	PayloadMaxBytes  int
	SensitiveFields  []string
	DisableTimestamp bool
}

// Option configures logger behavior.
type Option func(*Options)

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) { o.Format = format }
}

// WithLevel sets the minimum log level. Pass a *slog.LevelVar to change it at runtime.
func WithLevel(level slog.Leveler) Option {
	return func(o *Options) { o.Level = level }
}

// WithColor enables colorization of the level field.
func WithColor(enabled bool) Option {
	return func(o *Options) { o.Color = enabled }
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

// WithPayloadLimit truncates string values longer than maxBytes.
func WithPayloadLimit(maxBytes int) Option {
	return func(o *Options) { o.PayloadMaxBytes = maxBytes }
}

// WithSensitiveFields masks the values of the named keys.
func WithSensitiveFields(fields ...string) Option {
	return func(o *Options) { o.SensitiveFields = fields }
}

// WithTimestamp toggles the time field. Off by default since the container runtime stamps lines.
func WithTimestamp(enabled bool) Option {
	return func(o *Options) { o.DisableTimestamp = !enabled }
}

// Logger implements core/log.Logger on top of the logx handler.
type Logger struct {
	handler *internal.Handler
	attrs   []slog.Attr
}

var _ log.Logger = (*Logger)(nil)

// New creates a new Logger with the given options.
func New(opts ...Option) log.Logger {
	options := Options{
		Format:           FormatLogfmt,
		Level:            slog.LevelInfo,
		Writer:           os.Stderr,
		DisableTimestamp: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	return &Logger{
		handler: internal.NewHandler(internal.Options{
			Format:           string(options.Format),
			Level:            options.Level,
			Color:            options.Color,
			PayloadMaxBytes:  options.PayloadMaxBytes,
			SensitiveFields:  options.SensitiveFields,
			DisableTimestamp: options.DisableTimestamp,
		}, options.Writer),
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat maps "logfmt" and "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatLogfmt:
		return FormatLogfmt, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return FormatLogfmt, fmt.Errorf("unknown log format %q", s)
}

// Slog returns a *slog.Logger that writes through the same handler.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(l.handler.WithAttrs(l.attrs))
}

// With returns a new Logger with the given key-value pairs attached.
func (l *Logger) With(kv ...any) log.Logger {
	attrs := append([]slog.Attr{}, l.attrs...)
	return &Logger{
		handler: l.handler,
		attrs:   append(attrs, internal.KVToAttrs(kv)...),
	}
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(slog.LevelDebug, msg, internal.KVToAttrs(kv)) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(slog.LevelInfo, msg, internal.KVToAttrs(kv)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(slog.LevelWarn, msg, internal.KVToAttrs(kv)) }

// Error logs at error level with err attached under the "error" key.
func (l *Logger) Error(err error, msg string, kv ...any) {
	attrs := internal.KVToAttrs(kv)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log(slog.LevelError, msg, attrs)
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	all := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	all = append(all, l.attrs...)
	all = append(all, attrs...)
	_ = l.handler.LogRecord(level, msg, all)
}

// FromContext returns base enriched with the trace_id and span_id of the
// span active in ctx. Without a valid span base is returned unchanged.
func FromContext(ctx context.Context, base log.Logger) log.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return base
	}
	return base.With(
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}
