// Package log provides a minimal logging interface compatible with slog concepts.
//
// Overview:
//   - Responsibility: Define the logging interface shared by every busnode package
//   - Key Types: Logger interface with structured key-value logging
//   - Concurrency Model: Logger implementations must be safe for concurrent use
//
// Usage:
//
//	logger.Info("assembly loaded", log.Str("path", p), log.Int("types", n))
package log

import "time"

// Logger defines a structured logging interface compatible with slog concepts.
// Implementations must be safe for concurrent use.
type Logger interface {
	// With returns a new Logger with the given key-value pairs attached.
	With(kv ...any) Logger

	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)

	// Error logs an error message; err comes first for structured error handling.
	Error(err error, msg string, kv ...any)
}

// Str creates a string key-value pair.
func Str(k, v string) any {
	return []any{k, v}
}

// Int creates an integer key-value pair.
func Int(k string, v int) any {
	return []any{k, v}
}

// Bool creates a boolean key-value pair.
func Bool(k string, v bool) any {
	return []any{k, v}
}

// Dur creates a duration key-value pair.
func Dur(k string, v time.Duration) any {
	return []any{k, v}
}

// Err creates an "error" key-value pair. A nil error yields an empty string value.
func Err(err error) any {
	if err == nil {
		return []any{"error", ""}
	}
	return []any{"error", err.Error()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

type nop struct{}

func (n nop) With(...any) Logger        { return n }
func (nop) Debug(string, ...any)        {}
func (nop) Info(string, ...any)         {}
func (nop) Warn(string, ...any)         {}
func (nop) Error(error, string, ...any) {}
