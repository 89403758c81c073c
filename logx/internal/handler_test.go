package internal

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandler_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		minLevel slog.Level
		want     bool
	}{
		{"debug below info", slog.LevelDebug, slog.LevelInfo, false},
		{"info at info", slog.LevelInfo, slog.LevelInfo, true},
		{"error above info", slog.LevelError, slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Options{Level: tt.minLevel}, &bytes.Buffer{})
			if got := h.Enabled(context.Background(), tt.level); got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestHandler_SlogRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	h := NewHandler(Options{Format: "logfmt", DisableTimestamp: true}, buf)

	logger := slog.New(h).With("component", "pluginx").WithGroup("scan")
	logger.Info("scanned", "types", 3)

	out := buf.String()
	if !strings.Contains(out, `component="pluginx"`) {
		t.Errorf("output = %q, want component attr", out)
	}
	if !strings.Contains(out, "scan.types=3") {
		t.Errorf("output = %q, want grouped key scan.types", out)
	}
}

func TestKVToAttrs(t *testing.T) {
	attrs := KVToAttrs([]any{[]any{"a", 1}, "b", "two", "dangling"})
	if len(attrs) != 3 {
		t.Fatalf("len(attrs) = %d, want 3", len(attrs))
	}
	if attrs[0].Key != "a" || attrs[1].Key != "b" || attrs[2].Key != "!BADKEY" {
		t.Errorf("keys = %v, want [a b !BADKEY]", attrs)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		v    slog.Value
		opts Options
		want string
	}{
		{"string", "k", slog.StringValue("v"), Options{}, `"v"`},
		{"int", "k", slog.IntValue(7), Options{}, "7"},
		{"float", "k", slog.Float64Value(1.5), Options{}, "1.5"},
		{"duration ms", "k", slog.DurationValue(1500 * time.Millisecond), Options{}, "1500"},
		{"redacted", "Token", slog.StringValue("x"), Options{SensitiveFields: []string{"token"}}, `"***REDACTED***"`},
		{"truncated", "k", slog.StringValue("abcdef"), Options{PayloadMaxBytes: 3}, `"abc...(truncated, 6 bytes)"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.key, tt.v, tt.opts); got != tt.want {
				t.Errorf("FormatValue() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestColorizeLevel(t *testing.T) {
	if got := ColorizeLevel("INFO"); !strings.Contains(got, "\033[36m") {
		t.Errorf("ColorizeLevel(INFO) = %q, want cyan", got)
	}
	if got := ColorizeLevel("TRACE"); got != "TRACE" {
		t.Errorf("ColorizeLevel(TRACE) = %q, want unchanged", got)
	}
}
