package pluginx_test

import (
	"errors"
	"reflect"

	"go.eggybyte.com/busnode/pluginx"
	"go.eggybyte.com/busnode/servicex"
)

type OrderProvider interface{ Orders() []string }
type CustomerProvider interface{ Customer(id int) string }
type Auditable interface{ AuditTrail() string }

type OrdersProvider struct{ region string }

func (*OrdersProvider) Orders() []string { return []string{"o-1"} }

type CustomersProvider struct{ prefix string }

func NewCustomersProvider() *CustomersProvider { return &CustomersProvider{prefix: "c-"} }

func (p *CustomersProvider) Customer(id int) string { return p.prefix + "42" }
func (*CustomersProvider) AuditTrail() string       { return "customers" }

// Implements nothing declared.
type StandaloneProvider struct{}

// Implements a contract but is not named like a provider.
type OrderCache struct{}

func (*OrderCache) Orders() []string { return nil }

// Exported by value; its methods need a pointer.
type ValueOrdersProvider struct{ region string }

func NewValueOrdersProvider() ValueOrdersProvider { return ValueOrdersProvider{region: "eu"} }

func (p *ValueOrdersProvider) Orders() []string { return []string{"v-" + p.region} }

type hiddenProvider struct{}

func (*hiddenProvider) Orders() []string { return nil }

type Marker struct{ Name string }

type MarkerRegistrar struct{}

func (MarkerRegistrar) Register(_ *servicex.HostContext, s *servicex.ServiceCollection) error {
	return servicex.AddInstance[*Marker](s, &Marker{Name: "marker"})
}

type AuditRegistrar struct{}

func (*AuditRegistrar) Register(_ *servicex.HostContext, s *servicex.ServiceCollection) error {
	return servicex.AddTransient[Auditable](s, NewCustomersProvider)
}

type ValueRegistrar struct{ name string }

func (r *ValueRegistrar) Register(_ *servicex.HostContext, s *servicex.ServiceCollection) error {
	return servicex.AddInstance[*Marker](s, &Marker{Name: "value" + r.name})
}

type FailingRegistrar struct{}

func (*FailingRegistrar) Register(*servicex.HostContext, *servicex.ServiceCollection) error {
	return errors.New("database unreachable")
}

type PanickingRegistrar struct{}

func (*PanickingRegistrar) Register(*servicex.HostContext, *servicex.ServiceCollection) error {
	panic("nil map")
}

type ArgRegistrar struct{}

func (*ArgRegistrar) Register(*servicex.HostContext, *servicex.ServiceCollection) error { return nil }

func ordersAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Orders.Data",
		[]pluginx.Type{
			pluginx.Export[*OrdersProvider](nil),
			pluginx.Export[*OrderCache](nil),
			pluginx.Export[*hiddenProvider](nil),
		},
		pluginx.Contract[OrderProvider](),
	)
}

func customersAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Customers.Data",
		[]pluginx.Type{
			pluginx.Export[*CustomersProvider](NewCustomersProvider),
			pluginx.Export[*StandaloneProvider](nil),
		},
		pluginx.Contract[CustomerProvider](),
		pluginx.Contract[Auditable](),
	)
}

func typeNames(types []reflect.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name()
	}
	return out
}
