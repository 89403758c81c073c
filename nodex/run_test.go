package nodex_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/configx"
	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/nodex"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/testingx"
)

func configxTracing() configx.TracingConfig {
	return configx.TracingConfig{
		ZipkinEndpoint:     "http://localhost:9411/api/v2/spans",
		JaegerHost:         "localhost",
		SampleRatio:        0.5,
		CaptureMessageBody: true,
	}
}

type testEndpoint struct {
	name    busx.EndpointIdentity
	stopped atomic.Bool
}

func (e *testEndpoint) Name() busx.EndpointIdentity { return e.name }

func (e *testEndpoint) Stop(context.Context) error {
	e.stopped.Store(true)
	return nil
}

var quietOverrides = map[string]string{
	"HEALTH_PORT":     "127.0.0.1:0",
	"METRICS_PORT":    "127.0.0.1:0",
	"ZIPKIN_ENDPOINT": "",
	"JAEGER_HOST":     "",
}

func TestRun_MissingDiscoveryPathNeverStartsEndpoint(t *testing.T) {
	var started atomic.Bool
	rt := busx.RuntimeFunc(func(ctx context.Context, cfg *busx.EndpointConfiguration, _ servicex.Resolver) (busx.Endpoint, error) {
		started.Store(true)
		return &testEndpoint{name: cfg.Name}, nil
	})

	err := nodex.Run(context.Background(),
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(filepath.Join(t.TempDir(), "missing"), ""),
		nodex.WithLogger(testingx.NewMockLogger(t)),
		nodex.WithOverrides(quietOverrides),
		nodex.WithRuntime(rt),
	)
	testingx.AssertCode(t, err, errors.CodeConfiguration)
	assert.False(t, started.Load())
}

func TestRun_StartsAndStopsEndpoint(t *testing.T) {
	loader, dir := fixture(t, ordersAssembly(), customersAssembly())
	logger := testingx.NewMockLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ep := &testEndpoint{}
	var resolved atomic.Bool
	rt := busx.RuntimeFunc(func(_ context.Context, cfg *busx.EndpointConfiguration, services servicex.Resolver) (busx.Endpoint, error) {
		var orders OrderProvider
		if err := services.Resolve(&orders); err == nil && len(orders.Orders()) == 1 {
			resolved.Store(true)
		}
		ep.name = cfg.Name
		cancel()
		return ep, nil
	})

	err := nodex.Run(ctx,
		nodex.WithEndpointName(endpointName),
		nodex.WithDiscovery(dir, ""),
		nodex.WithLoader(loader),
		nodex.WithLogger(logger),
		nodex.WithOverrides(quietOverrides),
		nodex.WithRuntime(rt),
	)
	require.NoError(t, err)

	assert.True(t, resolved.Load())
	assert.Equal(t, endpointName, ep.name)
	assert.True(t, ep.stopped.Load())
	logger.AssertLogged("INFO", "bootstrap complete")
	logger.AssertLogged("INFO", "runtime stopped")
}
