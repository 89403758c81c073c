package pluginx

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is a compile-time table of assemblies. Packages linked into the
// node register themselves from init(); a discovery-directory file whose base
// name matches a catalog entry activates it.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*Assembly
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*Assembly)}
}

// Register adds a. Names are unique.
func (c *Catalog) Register(a *Assembly) error {
	if a == nil || a.Name == "" {
		return fmt.Errorf("pluginx: assembly name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.entries[a.Name]; dup {
		return fmt.Errorf("pluginx: assembly %q registered twice", a.Name)
	}
	c.entries[a.Name] = a
	return nil
}

// Lookup returns the entry named name.
func (c *Catalog) Lookup(name string) (*Assembly, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[name]
	return a, ok
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog used by RegisterAssembly.
func DefaultCatalog() *Catalog { return defaultCatalog }

// RegisterAssembly adds a to the default catalog. It is meant to be called
// from init() and panics on a duplicate name, like database/sql.Register.
//
//	func init() {
//		pluginx.RegisterAssembly(pluginx.NewAssembly("Divergent.Customers.Data",
//			[]pluginx.Type{pluginx.Export[*CustomersProvider](nil)},
//			pluginx.Contract[itops.CustomerProvider](),
//		))
//	}
func RegisterAssembly(a *Assembly) {
	if err := defaultCatalog.Register(a); err != nil {
		panic(err)
	}
}
