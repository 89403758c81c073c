package nodex_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"go.eggybyte.com/busnode/pluginx"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/testingx"
)

type OrderProvider interface{ Orders() []string }
type CustomerProvider interface{ Customer(id int) string }
type Auditable interface{ AuditTrail() string }

type OrdersProvider struct{}

func (*OrdersProvider) Orders() []string { return []string{"o-1"} }

type CustomersProvider struct{}

func (*CustomersProvider) Customer(id int) string { return "c-42" }
func (*CustomersProvider) AuditTrail() string     { return "customers" }

type StandaloneProvider struct{}

type Clock struct{ Zone string }

var registrarCalls atomic.Int32

type ClockRegistrar struct{}

func (ClockRegistrar) Register(host *servicex.HostContext, s *servicex.ServiceCollection) error {
	registrarCalls.Add(1)
	return servicex.AddInstance(s, &Clock{Zone: host.EndpointName})
}

type BrokenRegistrar struct{}

func (BrokenRegistrar) Register(*servicex.HostContext, *servicex.ServiceCollection) error {
	return errors.New("license file missing")
}

func ordersAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Orders.Data",
		[]pluginx.Type{pluginx.Export[*OrdersProvider](nil)},
		pluginx.Contract[OrderProvider](),
	)
}

func customersAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Customers.Data",
		[]pluginx.Type{
			pluginx.Export[*CustomersProvider](nil),
			pluginx.Export[ClockRegistrar](nil),
		},
		pluginx.Contract[CustomerProvider](),
		pluginx.Contract[Auditable](),
	)
}

func standaloneAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Standalone.Data",
		[]pluginx.Type{pluginx.Export[*StandaloneProvider](nil)},
	)
}

func brokenAssembly() *pluginx.Assembly {
	return pluginx.NewAssembly("Divergent.Broken.Data",
		[]pluginx.Type{pluginx.Export[BrokenRegistrar](nil)},
	)
}

// fixture returns a loader over the given assemblies and a discovery
// directory holding one marker file per assembly.
func fixture(t *testing.T, assemblies ...*pluginx.Assembly) (pluginx.Loader, string) {
	t.Helper()
	cat := pluginx.NewCatalog()
	var files []string
	for _, a := range assemblies {
		require.NoError(t, cat.Register(a))
		files = append(files, a.Name+".so")
	}
	return pluginx.CatalogLoader{Catalog: cat}, testingx.DiscoveryDir(t, files...)
}
