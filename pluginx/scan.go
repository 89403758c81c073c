package pluginx

import (
	"reflect"
	"strings"

	"go.eggybyte.com/busnode/servicex"
)

// DefaultProviderSuffix marks data-provider types by name.
const DefaultProviderSuffix = "Provider"

type scanConfig struct {
	nameSuffix string
	contracts  []reflect.Type
}

// ScanOption configures ScanProviders.
type ScanOption func(*scanConfig)

// WithNameSuffix changes the type-name ending that marks a provider.
func WithNameSuffix(suffix string) ScanOption {
	return func(c *scanConfig) { c.nameSuffix = suffix }
}

// WithContracts adds interfaces declared by the host to those declared by
// the assemblies.
func WithContracts(contracts ...reflect.Type) ScanOption {
	return func(c *scanConfig) { c.contracts = append(c.contracts, contracts...) }
}

// Provider is a provider type together with the contracts it implements.
type Provider struct {
	Type       Type
	Assembly   *Assembly
	Interfaces []reflect.Type
}

// FindProviders returns every exported, concrete type whose name ends with
// the provider suffix, with the declared contracts it implements. A value
// type whose pointer satisfies a contract is reported as the pointer type. Order is
// by type full name, then by interface full name.
func FindProviders(assemblies []*Assembly, opts ...ScanOption) []Provider {
	cfg := scanConfig{nameSuffix: DefaultProviderSuffix}
	for _, opt := range opts {
		opt(&cfg)
	}
	contracts := contractsOf(assemblies, cfg.contracts)

	var out []Provider
	seen := map[reflect.Type]bool{}
	for _, st := range sortedTypes(assemblies) {
		if !st.Exported() || !st.Concrete() || !strings.HasSuffix(st.Name, cfg.nameSuffix) {
			continue
		}
		t := st.Type.satisfying(contracts...)
		if seen[t.Type] {
			continue
		}
		seen[t.Type] = true

		p := Provider{Type: t, Assembly: st.Assembly}
		for _, c := range contracts {
			if t.Type.Implements(c) {
				p.Interfaces = append(p.Interfaces, c)
			}
		}
		out = append(out, p)
	}
	return out
}

// ScanProviders turns provider types into service registrations: one
// Transient descriptor per implemented interface. A provider implementing
// no declared interface contributes nothing. Running it twice over the same
// assemblies yields the same sequence.
func ScanProviders(assemblies []*Assembly, opts ...ScanOption) []servicex.ServiceDescriptor {
	var out []servicex.ServiceDescriptor
	for _, p := range FindProviders(assemblies, opts...) {
		ctor := p.Type.Constructor()
		for _, iface := range p.Interfaces {
			out = append(out, servicex.ServiceDescriptor{
				ServiceType:        iface,
				ImplementationType: p.Type.Type,
				Lifetime:           servicex.Transient,
				Constructor:        ctor,
			})
		}
	}
	return out
}
