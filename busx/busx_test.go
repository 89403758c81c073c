package busx

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/servicex"
	"go.eggybyte.com/busnode/testingx"
)

func TestNewEndpointConfiguration_Defaults(t *testing.T) {
	cfg := NewEndpointConfiguration("Divergent.ITOps")

	assert.Equal(t, EndpointIdentity("Divergent.ITOps"), cfg.Name)
	assert.Equal(t, EndpointIdentity("Divergent.ITOps"), cfg.Identity())
	assert.Equal(t, DefaultTransport, cfg.Transport)
	assert.Equal(t, runtime.NumCPU(), cfg.Concurrency)
	assert.Equal(t, Recoverability{ImmediateRetries: 3, DelayedRetries: 2, DelayedRetryInterval: 10 * time.Second}, cfg.Recoverability)
	assert.Equal(t, "error", cfg.ErrorQueue)
	assert.Equal(t, "audit", cfg.AuditQueue)
	assert.NotNil(t, cfg.Settings)
	assert.NoError(t, cfg.Validate())
}

func TestApply_RunsHooksInOrder(t *testing.T) {
	cfg := NewEndpointConfiguration("Divergent.ITOps")
	var order []string

	err := cfg.Apply(
		func(c *EndpointConfiguration) error {
			order = append(order, "transport")
			c.UseTransport("rabbitmq").Settings.With("host", "localhost").With("port", 5672)
			return nil
		},
		nil,
		func(c *EndpointConfiguration) error {
			order = append(order, "tuning")
			c.LimitConcurrency(4).Retries(1, 0, 0)
			return nil
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"transport", "tuning"}, order)
	assert.Equal(t, "rabbitmq", cfg.Transport)
	assert.Equal(t, 4, cfg.Concurrency)
	host, ok := cfg.Settings.String("host")
	assert.True(t, ok)
	assert.Equal(t, "localhost", host)
	port, ok := cfg.Settings.Int("port")
	assert.True(t, ok)
	assert.Equal(t, 5672, port)
	assert.Equal(t, []string{"host", "port"}, cfg.Settings.Keys())
}

func TestApply_Failures(t *testing.T) {
	tests := []struct {
		name string
		hook ConfigureFunc
		want string
	}{
		{"hook error", func(*EndpointConfiguration) error { return fmt.Errorf("transport unreachable") }, "transport unreachable"},
		{"hook panic", func(*EndpointConfiguration) error { panic("boom") }, "panicked: boom"},
		{"renamed endpoint", func(c *EndpointConfiguration) error { c.Name = "Other"; return nil }, "does not match identity"},
		{"zero concurrency", func(c *EndpointConfiguration) error { c.LimitConcurrency(0); return nil }, "concurrency must be positive"},
		{"delayed retries without interval", func(c *EndpointConfiguration) error { c.Retries(1, 2, 0); return nil }, "positive interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEndpointConfiguration("Divergent.ITOps").Apply(tt.hook)
			testingx.AssertCode(t, err, errors.CodeEndpointConfiguration)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "Divergent.ITOps")
		})
	}
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	called := false
	err := NewEndpointConfiguration("n").Apply(
		func(*EndpointConfiguration) error { return fmt.Errorf("first") },
		func(*EndpointConfiguration) error { called = true; return nil },
	)
	assert.True(t, errors.IsEndpointConfiguration(err))
	assert.False(t, called)
}

func TestValidate_SendOnlyNeedsNoErrorQueue(t *testing.T) {
	cfg := NewEndpointConfiguration("n")
	cfg.ErrorQueue = ""
	assert.Error(t, cfg.Validate())

	cfg.SendOnly = true
	assert.NoError(t, cfg.Validate())
}

func TestSettings_TypeMismatch(t *testing.T) {
	s := Settings{}.With("durable", true).With("prefetch", "ten")

	v, ok := s.Bool("durable")
	assert.True(t, ok)
	assert.True(t, v)
	_, ok = s.Int("prefetch")
	assert.False(t, ok)
	_, ok = s.String("missing")
	assert.False(t, ok)
}

func TestStandbyRuntime(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	cfg := NewEndpointConfiguration("Divergent.ITOps")
	container, err := servicex.NewServiceCollection().Build()
	require.NoError(t, err)

	ep, err := StandbyRuntime{Logger: logger}.Start(context.Background(), cfg, container)
	require.NoError(t, err)
	assert.Equal(t, EndpointIdentity("Divergent.ITOps"), ep.Name())

	started := logger.AssertLogged("INFO", "endpoint started")
	assert.Equal(t, "Divergent.ITOps", started.Fields["endpoint"])
	assert.Equal(t, "learning", started.Fields["transport"])

	require.NoError(t, ep.Stop(context.Background()))
	require.NoError(t, ep.Stop(context.Background()))
	stopped := 0
	for _, e := range logger.Entries() {
		if e.Message == "endpoint stopped" {
			stopped++
		}
	}
	assert.Equal(t, 1, stopped)
}

func TestStandbyRuntime_RejectsInvalidConfig(t *testing.T) {
	cfg := NewEndpointConfiguration("n")
	cfg.Concurrency = 0
	_, err := StandbyRuntime{}.Start(context.Background(), cfg, nil)
	testingx.AssertCode(t, err, errors.CodeEndpointConfiguration)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StandbyRuntime{}.Start(ctx, NewEndpointConfiguration("n"), nil)
	testingx.AssertCode(t, err, errors.CodeAborted)
}

func TestEndpointService_Lifecycle(t *testing.T) {
	var gotResolver servicex.Resolver
	container, err := servicex.NewServiceCollection().Build()
	require.NoError(t, err)

	rt := RuntimeFunc(func(ctx context.Context, cfg *EndpointConfiguration, services servicex.Resolver) (Endpoint, error) {
		gotResolver = services
		return StandbyRuntime{}.Start(ctx, cfg, services)
	})
	svc := NewEndpointService(rt, NewEndpointConfiguration("Divergent.ITOps"), container)

	assert.Nil(t, svc.Endpoint())
	require.NoError(t, svc.Stop(context.Background()))

	require.NoError(t, svc.Start(context.Background()))
	assert.Same(t, container, gotResolver)
	require.NotNil(t, svc.Endpoint())

	testingx.AssertCode(t, svc.Start(context.Background()), errors.CodeAlreadyExists)

	require.NoError(t, svc.Stop(context.Background()))
	assert.Nil(t, svc.Endpoint())
}
