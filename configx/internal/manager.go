package internal

import (
	"context"
	"fmt"
	"sync"

	"go.eggybyte.com/busnode/core/log"
)

// ManagerImpl merges sources into one snapshot. Later sources win; empty
// values never override a non-empty value from an earlier source.
type ManagerImpl struct {
	logger   log.Logger
	sources  []Source
	mu       sync.RWMutex
	snapshot map[string]string
}

// NewManager creates a manager over sources.
func NewManager(logger log.Logger, sources []Source) (*ManagerImpl, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}
	return &ManagerImpl{
		logger:   logger,
		sources:  sources,
		snapshot: map[string]string{},
	}, nil
}

// Load reads every source and replaces the snapshot.
func (m *ManagerImpl) Load(ctx context.Context) error {
	merged := make(map[string]string)
	for i, src := range m.sources {
		snap, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("source %d (%T): %w", i, src, err)
		}
		for k, v := range snap {
			if v != "" || merged[k] == "" {
				merged[k] = v
			}
		}
	}

	m.mu.Lock()
	m.snapshot = merged
	m.mu.Unlock()

	m.logger.Debug("configuration loaded", log.Int("keys", len(merged)), log.Int("sources", len(m.sources)))
	return nil
}

// Snapshot returns a copy of the merged configuration.
func (m *ManagerImpl) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.snapshot))
	for k, v := range m.snapshot {
		out[k] = v
	}
	return out
}

// Value returns the value for a key and whether it exists.
func (m *ManagerImpl) Value(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.snapshot[key]
	return v, ok
}

// Bind decodes the snapshot into target.
func (m *ManagerImpl) Bind(target any) error {
	return BindToStruct(m.Snapshot(), target)
}
