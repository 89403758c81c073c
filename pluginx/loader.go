package pluginx

import (
	"context"
	"errors"
	"fmt"
	"plugin"
)

// ErrUnknownAssembly is returned by a Loader that does not recognize a file.
// ChainLoader moves on to the next loader when it sees it.
var ErrUnknownAssembly = errors.New("unknown assembly")

// SymbolName is the symbol a shared object must export: either a
// *pluginx.Assembly variable or a func() *pluginx.Assembly.
const SymbolName = "Assembly"

// Loader turns a matched discovery file into an Assembly.
type Loader interface {
	Load(ctx context.Context, path, name string) (*Assembly, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path, name string) (*Assembly, error)

func (f LoaderFunc) Load(ctx context.Context, path, name string) (*Assembly, error) {
	return f(ctx, path, name)
}

// CatalogLoader activates catalog entries by name. The file content is not read.
type CatalogLoader struct {
	Catalog *Catalog // nil means the default catalog
}

func (l CatalogLoader) Load(_ context.Context, path, name string) (*Assembly, error) {
	cat := l.Catalog
	if cat == nil {
		cat = defaultCatalog
	}
	a, ok := cat.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the catalog", ErrUnknownAssembly, name)
	}
	return a.at(path), nil
}

// SharedObjectLoader opens Go plugins built with -buildmode=plugin. Opened
// plugins cannot be unloaded and stay resident for the process lifetime.
type SharedObjectLoader struct{}

func (SharedObjectLoader) Load(_ context.Context, path, name string) (*Assembly, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}
	sym, err := p.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", SymbolName, err)
	}
	a, err := assemblyFromSymbol(sym, name)
	if err != nil {
		return nil, err
	}
	return a.at(path), nil
}

func assemblyFromSymbol(sym plugin.Symbol, name string) (*Assembly, error) {
	var a *Assembly
	switch s := sym.(type) {
	case *Assembly:
		a = s
	case **Assembly:
		a = *s
	case func() *Assembly:
		a = s()
	case *func() *Assembly:
		a = (*s)()
	default:
		return nil, fmt.Errorf("symbol %s has type %T, want *pluginx.Assembly", SymbolName, sym)
	}
	if a == nil {
		return nil, fmt.Errorf("symbol %s is nil", SymbolName)
	}
	if a.Name == "" {
		a.Name = name
	}
	return a, nil
}

// ChainLoader tries each loader in order. A loader answering
// ErrUnknownAssembly passes the file on; any other error stops the chain.
type ChainLoader []Loader

func (c ChainLoader) Load(ctx context.Context, path, name string) (*Assembly, error) {
	var last error = fmt.Errorf("%w: no loader configured", ErrUnknownAssembly)
	for _, l := range c {
		a, err := l.Load(ctx, path, name)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrUnknownAssembly) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// DefaultLoader checks the default catalog first and falls back to opening
// the file as a Go plugin.
func DefaultLoader() Loader {
	return ChainLoader{CatalogLoader{}, SharedObjectLoader{}}
}
