package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is a storage backend.
type Store interface {
	Ping(ctx context.Context) error
	Close() error
}

// Registry tracks named stores. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register adds store under name.
func (r *Registry) Register(name string, store Store) error {
	if name == "" {
		return fmt.Errorf("store name is required")
	}
	if store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store %s already registered", name)
	}
	r.stores[name] = store
	return nil
}

// Unregister removes a store without closing it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; !exists {
		return fmt.Errorf("store %s not found", name)
	}
	delete(r.stores, name)
	return nil
}

// Ping pings every store within five seconds and joins the failures.
func (r *Registry) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for _, name := range r.List() {
		store, _ := r.Get(name)
		if err := store.Ping(pingCtx); err != nil {
			errs = append(errs, fmt.Errorf("store %s ping failed: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every store and joins the failures.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.List() {
		store, _ := r.Get(name)
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store %s close failed: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a registered store by name.
func (r *Registry) Get(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, exists := r.stores[name]
	return store, exists
}
