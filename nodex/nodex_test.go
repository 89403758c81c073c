package nodex_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/nodex"
	"go.eggybyte.com/busnode/obsx"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/testingx"
)

const endpointName busx.EndpointIdentity = "Divergent.ITOps"

func referenceTracing() nodex.Option {
	return nodex.WithTracing(
		obsx.WithZipkinExporter("http://localhost:9411/api/v2/spans"),
		obsx.WithJaegerExporter("localhost", 0),
		obsx.WithMessagingInstrumentation(true),
		obsx.WithSQLInstrumentation(true),
	)
}

func bootstrap(t *testing.T, opts ...nodex.Option) (*nodex.Result, error) {
	t.Helper()
	loader, dir := fixture(t, ordersAssembly(), customersAssembly())
	base := []nodex.Option{
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
		nodex.WithLogger(testingx.NewMockLogger(t)),
	}
	return nodex.Bootstrap(context.Background(), append(base, opts...)...)
}

func TestBootstrap_ReferenceScenario(t *testing.T) {
	res, err := bootstrap(t, referenceTracing())
	require.NoError(t, err)

	assert.Len(t, res.Assemblies, 2)
	assert.Equal(t, 3, res.Providers)

	want := map[string]string{
		fmt.Sprint(servicex.TypeOf[OrderProvider]()):    "*nodex_test.OrdersProvider",
		fmt.Sprint(servicex.TypeOf[CustomerProvider]()): "*nodex_test.CustomersProvider",
		fmt.Sprint(servicex.TypeOf[Auditable]()):        "*nodex_test.CustomersProvider",
	}
	got := map[string]string{}
	for _, d := range res.Services.Descriptors() {
		if _, ok := want[fmt.Sprint(d.ServiceType)]; ok {
			assert.Equal(t, servicex.Transient, d.Lifetime, d.String())
			got[fmt.Sprint(d.ServiceType)] = fmt.Sprint(d.ImplementationType)
		}
	}
	assert.Equal(t, want, got)

	assert.True(t, res.Services.Contains(servicex.TypeOf[*Clock]()))
	assert.Equal(t, []string{"go.eggybyte.com/busnode/nodex_test.ClockRegistrar"}, res.Registrars)
}

func TestBootstrap_EndpointNameMatchesExporters(t *testing.T) {
	res, err := bootstrap(t, referenceTracing())
	require.NoError(t, err)

	assert.Equal(t, endpointName, res.Endpoint.Name)
	assert.Equal(t, string(endpointName), res.Tracing.ServiceName)
	require.Len(t, res.Tracing.Exporters, 2)
	for _, name := range res.Tracing.ServiceNames() {
		assert.Equal(t, string(endpointName), name)
	}
	assert.True(t, res.Tracing.Captures(obsx.SubsystemMessaging, obsx.CaptureMessageBody))
	assert.True(t, res.Tracing.Captures(obsx.SubsystemSQL, obsx.CaptureCommandText))
}

func TestBootstrap_Deterministic(t *testing.T) {
	describe := func(res *nodex.Result) []string {
		var out []string
		for _, d := range res.Services.Descriptors() {
			out = append(out, d.String())
		}
		return out
	}

	before := registrarCalls.Load()
	first, err := bootstrap(t)
	require.NoError(t, err)
	assert.Equal(t, before+1, registrarCalls.Load())

	second, err := bootstrap(t)
	require.NoError(t, err)
	assert.Equal(t, before+2, registrarCalls.Load())

	assert.Equal(t, describe(first), describe(second))
}

func TestBootstrap_ZeroInterfaceProvider(t *testing.T) {
	loader, dir := fixture(t, standaloneAssembly())
	res, err := nodex.Bootstrap(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
	)
	require.NoError(t, err)
	assert.Zero(t, res.Providers)
	assert.False(t, res.Services.Contains(servicex.TypeOf[*StandaloneProvider]()))
}

func TestBootstrap_MissingDiscoveryPath(t *testing.T) {
	_, err := nodex.Bootstrap(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(filepath.Join(t.TempDir(), "Providers"), ""),
	)
	testingx.AssertCode(t, err, errors.CodeConfiguration)
}

func TestNew_Validation(t *testing.T) {
	_, err := nodex.New(nodex.WithDiscovery(t.TempDir(), ""))
	testingx.AssertCode(t, err, errors.CodeConfiguration)

	_, err = nodex.New(nodex.WithEndpointName(endpointName))
	testingx.AssertCode(t, err, errors.CodeConfiguration)
}

func TestBootstrap_RunsOnce(t *testing.T) {
	loader, dir := fixture(t, ordersAssembly())
	b, err := nodex.New(
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
	)
	require.NoError(t, err)

	_, err = b.Bootstrap(context.Background())
	require.NoError(t, err)

	res, err := b.Bootstrap(context.Background())
	assert.Nil(t, res)
	testingx.AssertCode(t, err, errors.CodeAborted)
}

func TestBootstrap_EndpointHooks(t *testing.T) {
	res, err := bootstrap(t, nodex.WithEndpointConfig(func(c *busx.EndpointConfiguration) error {
		c.UseTransport("rabbitmq").LimitConcurrency(4)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "rabbitmq", res.Endpoint.Transport)
	assert.Equal(t, 4, res.Endpoint.Concurrency)

	res, err = bootstrap(t, nodex.WithEndpointConfig(func(c *busx.EndpointConfiguration) error {
		return fmt.Errorf("no connection string")
	}))
	assert.Nil(t, res)
	testingx.AssertCode(t, err, errors.CodeEndpointConfiguration)
}

func TestBootstrap_RegistrarFailure(t *testing.T) {
	loader, dir := fixture(t, ordersAssembly(), brokenAssembly())
	var hookRan atomic.Bool
	res, err := nodex.Bootstrap(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
		nodex.WithEndpointConfig(func(*busx.EndpointConfiguration) error {
			hookRan.Store(true)
			return nil
		}),
	)
	assert.Nil(t, res)
	testingx.AssertCode(t, err, errors.CodeRegistrarExecution)
	assert.Contains(t, err.Error(), "BrokenRegistrar")
	assert.False(t, hookRan.Load())
}

func TestBootstrap_UnknownAssembly(t *testing.T) {
	loader, _ := fixture(t, ordersAssembly())
	dir := testingx.DiscoveryDir(t, "Divergent.Orders.Data.so", "Divergent.Sales.Data.so")

	_, err := nodex.Bootstrap(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
	)
	testingx.AssertCode(t, err, errors.CodePluginLoad)

	res, err := nodex.Bootstrap(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
		nodex.WithSkipFailed(true),
	)
	require.NoError(t, err)
	assert.Len(t, res.Assemblies, 1)
}

func TestTracingOptions(t *testing.T) {
	cfg := obsx.ComposeTracing(string(endpointName), nodex.TracingOptions(configxTracing())...)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Exporters, 2)
	assert.Equal(t, obsx.ExporterZipkin, cfg.Exporters[0].Kind)
	assert.Equal(t, obsx.ExporterJaeger, cfg.Exporters[1].Kind)
	assert.Equal(t, "localhost:4317", cfg.Exporters[1].Target())
	assert.Equal(t, 0.5, cfg.SampleRatio)
	assert.True(t, cfg.Captures(obsx.SubsystemMessaging, obsx.CaptureMessageBody))
	assert.False(t, cfg.Captures(obsx.SubsystemSQL, obsx.CaptureCommandText))
	assert.True(t, cfg.Instrumented(obsx.SubsystemSQL))
}
