package pluginx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/pluginx"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/testingx"
)

func registrarAssembly(types ...pluginx.Type) []*pluginx.Assembly {
	return []*pluginx.Assembly{pluginx.NewAssembly("Registrars.Data", types)}
}

func TestDiscoverRegistrarsOrder(t *testing.T) {
	assemblies := registrarAssembly(
		pluginx.Export[MarkerRegistrar](nil),
		pluginx.Export[*AuditRegistrar](nil),
		pluginx.Export[*OrdersProvider](nil),
	)

	got := pluginx.DiscoverRegistrars(assemblies)
	require.Len(t, got, 2)
	assert.Equal(t, "AuditRegistrar", got[0].Name)
	assert.Equal(t, "MarkerRegistrar", got[1].Name)
}

func TestInvokeRegistrars(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	host := &servicex.HostContext{EndpointName: "Divergent.ITOps", Logger: logger}
	services := servicex.NewServiceCollection()

	assemblies := registrarAssembly(pluginx.Export[MarkerRegistrar](nil), pluginx.Export[*AuditRegistrar](nil))
	invoked, err := pluginx.InvokeRegistrars(assemblies, host, services)
	require.NoError(t, err)

	require.Len(t, invoked, 2)
	assert.Equal(t, "AuditRegistrar", invoked[0].Name)
	assert.Equal(t, "MarkerRegistrar", invoked[1].Name)
	require.Equal(t, 2, services.Len())
	assert.True(t, services.Contains(servicex.TypeOf[Auditable]()))
	assert.True(t, services.Contains(servicex.TypeOf[*Marker]()))

	var logged int
	for _, e := range logger.Entries() {
		if e.Message == "registrar invoked" {
			logged++
		}
	}
	assert.Equal(t, 2, logged, "each registrar runs exactly once")
}

func TestInvokeRegistrarsExecutionError(t *testing.T) {
	services := servicex.NewServiceCollection()
	assemblies := registrarAssembly(
		pluginx.Export[*AuditRegistrar](nil),
		pluginx.Export[*FailingRegistrar](nil),
		pluginx.Export[MarkerRegistrar](nil),
	)

	invoked, err := pluginx.InvokeRegistrars(assemblies, &servicex.HostContext{}, services)
	testingx.AssertCode(t, err, coreerrors.CodeRegistrarExecution)
	require.Len(t, invoked, 1)
	assert.Equal(t, "AuditRegistrar", invoked[0].Name)
	assert.Contains(t, err.Error(), "FailingRegistrar")
	assert.Contains(t, err.Error(), "database unreachable")
	assert.False(t, services.Contains(servicex.TypeOf[*Marker]()), "registrars after a failure must not run")
}

func TestInvokeRegistrarsPanic(t *testing.T) {
	_, err := pluginx.InvokeRegistrars(registrarAssembly(pluginx.Export[*PanickingRegistrar](nil)), nil, servicex.NewServiceCollection())
	testingx.AssertCode(t, err, coreerrors.CodeRegistrarExecution)
	assert.Contains(t, err.Error(), "nil map")
}

func TestInvokeRegistrarsInstantiationErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  pluginx.Type
	}{
		{"constructor with arguments", pluginx.Export[*ArgRegistrar](func(string) *ArgRegistrar { return &ArgRegistrar{} })},
		{"constructor returns nil", pluginx.Export[*ArgRegistrar](func() *ArgRegistrar { return nil })},
		{"constructor fails", pluginx.Export[*ArgRegistrar](func() (*ArgRegistrar, error) { return nil, assert.AnError })},
		{"constructor panics", pluginx.Export[*ArgRegistrar](func() *ArgRegistrar { panic("boom") })},
		{"constructor is not a function", pluginx.Export[*ArgRegistrar]("ArgRegistrar")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pluginx.InvokeRegistrars(registrarAssembly(tt.typ), nil, servicex.NewServiceCollection())
			testingx.AssertCode(t, err, coreerrors.CodeRegistrarInstantiation)
			assert.Contains(t, err.Error(), "ArgRegistrar")
		})
	}
}

func TestInvokeRegistrarsNone(t *testing.T) {
	services := servicex.NewServiceCollection()
	invoked, err := pluginx.InvokeRegistrars([]*pluginx.Assembly{ordersAssembly()}, nil, services)
	require.NoError(t, err)
	assert.Empty(t, invoked)
	assert.Zero(t, services.Len())
}

func TestInvokeRegistrarsValueTypeExport(t *testing.T) {
	tests := []struct {
		name string
		typ  pluginx.Type
		want string
	}{
		{"zero value", pluginx.Export[ValueRegistrar](nil), "value"},
		{"value constructor", pluginx.Export[ValueRegistrar](func() ValueRegistrar { return ValueRegistrar{name: "-ctor"} }), "value-ctor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assemblies := registrarAssembly(tt.typ)

			discovered := pluginx.DiscoverRegistrars(assemblies)
			require.Len(t, discovered, 1)
			assert.Equal(t, servicex.TypeOf[*ValueRegistrar](), discovered[0].Type)

			services := servicex.NewServiceCollection()
			invoked, err := pluginx.InvokeRegistrars(assemblies, nil, services)
			require.NoError(t, err)
			require.Len(t, invoked, 1)
			assert.Equal(t, "ValueRegistrar", invoked[0].Name)

			container, err := services.Build()
			require.NoError(t, err)
			marker, err := servicex.ResolveTyped[*Marker](container)
			require.NoError(t, err)
			assert.Equal(t, tt.want, marker.Name)
		})
	}
}

func TestInvokeRegistrarsValueConstructorMismatch(t *testing.T) {
	typ := pluginx.Export[ValueRegistrar](func() string { return "ValueRegistrar" })

	_, err := pluginx.InvokeRegistrars(registrarAssembly(typ), nil, servicex.NewServiceCollection())
	testingx.AssertCode(t, err, coreerrors.CodeRegistrarInstantiation)
	assert.Contains(t, err.Error(), "ValueRegistrar")
}
