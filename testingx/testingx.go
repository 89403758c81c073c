// Package testingx provides test helpers shared by busnode packages.
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	dir := testingx.DiscoveryDir(t, "Divergent.Customers.Data.so", "notes.txt")
//	testingx.AssertCode(t, err, errors.CodePluginLoad)
package testingx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
)

// MockLogger records every entry. Loggers derived with With share the
// record and carry their fields into each entry.
type MockLogger struct {
	t      testing.TB
	shared *entries
	fields []any
}

type entries struct {
	mu   sync.Mutex
	list []LogEntry
}

// LogEntry is one recorded log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
	Error   error
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t testing.TB) *MockLogger {
	return &MockLogger{t: t, shared: &entries{}}
}

var _ log.Logger = (*MockLogger)(nil)

func (m *MockLogger) With(kv ...any) log.Logger {
	return &MockLogger{t: m.t, shared: m.shared, fields: append(append([]any{}, m.fields...), kv...)}
}

func (m *MockLogger) Debug(msg string, kv ...any)            { m.log("DEBUG", msg, nil, kv) }
func (m *MockLogger) Info(msg string, kv ...any)             { m.log("INFO", msg, nil, kv) }
func (m *MockLogger) Warn(msg string, kv ...any)             { m.log("WARN", msg, nil, kv) }
func (m *MockLogger) Error(err error, msg string, kv ...any) { m.log("ERROR", msg, err, kv) }

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	fields := toMap(append(append([]any{}, m.fields...), kv...))
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	m.shared.list = append(m.shared.list, LogEntry{Level: level, Message: msg, Fields: fields, Error: err})
}

// toMap flattens the pair helpers of core/log into a key map.
func toMap(kv []any) map[string]any {
	flat := make([]any, 0, len(kv))
	for _, item := range kv {
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			flat = append(flat, pair...)
			continue
		}
		flat = append(flat, item)
	}
	out := make(map[string]any, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[fmt.Sprint(flat[i])] = flat[i+1]
	}
	return out
}

// Entries returns a copy of the recorded entries.
func (m *MockLogger) Entries() []LogEntry {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	return append([]LogEntry(nil), m.shared.list...)
}

// Find returns the first entry with the given level and message.
func (m *MockLogger) Find(level, msg string) (LogEntry, bool) {
	for _, e := range m.Entries() {
		if e.Level == level && e.Message == msg {
			return e, true
		}
	}
	return LogEntry{}, false
}

// AssertLogged fails the test when no entry matches level and msg.
func (m *MockLogger) AssertLogged(level, msg string) LogEntry {
	m.t.Helper()
	e, ok := m.Find(level, msg)
	if !ok {
		m.t.Errorf("expected log entry not found: level=%s msg=%q", level, msg)
	}
	return e
}

// AssertCode fails the test unless err carries code somewhere in its chain.
func AssertCode(t testing.TB, err error, code errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if !errors.IsCode(err, code) {
		t.Errorf("error code = %s, want %s (err: %v)", errors.CodeOf(err), code, err)
	}
}

// DiscoveryDir creates a temporary discovery directory holding the named
// files. A name ending in "/" creates a subdirectory instead. File content is
// a short marker, so shared-object loading fails on them.
func DiscoveryDir(t testing.TB, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte("busnode assembly marker\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
