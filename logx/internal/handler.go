// Package internal holds the record encoder behind logx.
package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const redacted = "***REDACTED***"

// Options configures the handler.
type Options struct {
	Format           string // "logfmt" or "json"
	Level            slog.Leveler
	Color            bool // colorize the level value (logfmt only)
	PayloadMaxBytes  int  // truncate long string values (0 = unlimited)
	SensitiveFields  []string
	DisableTimestamp bool
}

// Handler writes records as logfmt or JSON with keys sorted for stable output.
// It implements slog.Handler so it can back a plain *slog.Logger as well.
type Handler struct {
	opts   Options
	mu     *sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
	group  string
}

// NewHandler creates a Handler writing to w.
func NewHandler(opts Options, w io.Writer) *Handler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &Handler{opts: opts, mu: &sync.Mutex{}, writer: w}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return h.LogRecord(r.Level, r.Message, attrs)
}

// LogRecord encodes and writes a single record.
func (h *Handler) LogRecord(level slog.Level, msg string, attrs []slog.Attr) error {
	if level < h.opts.Level.Level() {
		return nil
	}

	all := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	all = append(all, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		all = append(all, a)
	}
	all = SortAttrs(all)

	var line []byte
	if h.opts.Format == "json" {
		var err error
		if line, err = h.encodeJSON(level, msg, all); err != nil {
			return err
		}
	} else {
		line = h.encodeLogfmt(level, msg, all)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(line)
	return err
}

func (h *Handler) encodeLogfmt(level slog.Level, msg string, attrs []slog.Attr) []byte {
	var buf bytes.Buffer
	if !h.opts.DisableTimestamp {
		buf.WriteString("time=")
		buf.WriteString(time.Now().Format(time.RFC3339))
		buf.WriteByte(' ')
	}

	lvl := LevelString(level)
	if h.opts.Color {
		lvl = ColorizeLevel(lvl)
	}
	buf.WriteString("level=")
	buf.WriteString(lvl)
	buf.WriteString(" msg=")
	buf.WriteString(strconv.Quote(msg))

	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(FormatValue(a.Key, a.Value, h.opts))
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func (h *Handler) encodeJSON(level slog.Level, msg string, attrs []slog.Attr) ([]byte, error) {
	// map keys are sorted by the encoder
	m := make(map[string]any, len(attrs)+3)
	if !h.opts.DisableTimestamp {
		m["time"] = time.Now().Format(time.RFC3339)
	}
	m["level"] = LevelString(level)
	m["msg"] = msg
	for _, a := range attrs {
		m[a.Key] = jsonValue(a.Key, a.Value, h.opts)
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode log record: %w", err)
	}
	return append(out, '\n'), nil
}

// WithAttrs returns a new Handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return next
}

// WithGroup returns a new Handler that prefixes subsequent keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	next := h.clone()
	if next.group != "" {
		next.group += "." + name
	} else {
		next.group = name
	}
	return next
}

func (h *Handler) clone() *Handler {
	return &Handler{
		opts:   h.opts,
		mu:     h.mu,
		writer: h.writer,
		attrs:  append([]slog.Attr{}, h.attrs...),
		group:  h.group,
	}
}

// KVToAttrs converts key-value pairs to attributes. Pairs built with the
// core/log helpers arrive as 2-element []any and are flattened first.
func KVToAttrs(kv []any) []slog.Attr {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair[0], pair[1])
			continue
		}
		flat = append(flat, item)
	}

	attrs := make([]slog.Attr, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(flat[i]), flat[i+1]))
	}
	if len(flat)%2 == 1 {
		attrs = append(attrs, slog.Any("!BADKEY", flat[len(flat)-1]))
	}
	return attrs
}

// SortAttrs returns a copy of attrs sorted by key.
func SortAttrs(attrs []slog.Attr) []slog.Attr {
	sorted := make([]slog.Attr, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

func isSensitive(key string, opts Options) bool {
	for _, field := range opts.SensitiveFields {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

func truncate(s string, opts Options) string {
	if opts.PayloadMaxBytes > 0 && len(s) > opts.PayloadMaxBytes {
		return fmt.Sprintf("%s...(truncated, %d bytes)", s[:opts.PayloadMaxBytes], len(s))
	}
	return s
}

// FormatValue formats a value for logfmt output.
func FormatValue(key string, v slog.Value, opts Options) string {
	if isSensitive(key, opts) {
		return strconv.Quote(redacted)
	}

	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return strconv.Quote(truncate(v.String(), opts))
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return strconv.FormatInt(v.Duration().Milliseconds(), 10)
	case slog.KindTime:
		return strconv.Quote(v.Time().Format(time.RFC3339))
	default:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(truncate(err.Error(), opts))
		}
		return strconv.Quote(truncate(fmt.Sprint(v.Any()), opts))
	}
}

func jsonValue(key string, v slog.Value, opts Options) any {
	if isSensitive(key, opts) {
		return redacted
	}

	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return truncate(v.String(), opts)
	case slog.KindDuration:
		return v.Duration().Milliseconds()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case fmt.Stringer:
			return x.String()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

// LevelString returns the upper-case name of a level.
func LevelString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return level.String()
	}
}

// ColorizeLevel wraps a level name in ANSI color codes.
func ColorizeLevel(level string) string {
	const reset = "\033[0m"
	colors := map[string]string{
		"DEBUG": "\033[35m",
		"INFO":  "\033[36m",
		"WARN":  "\033[33m",
		"ERROR": "\033[31m",
	}
	if c, ok := colors[level]; ok {
		return c + level + reset
	}
	return level
}
