package obsx

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"go.eggybyte.com/busnode/servicex"
)

// Attach registers the tracing setup in services:
//   - TracingConfig as an instance
//   - *TracerProvider as a singleton, built on first resolution
//   - trace.TracerProvider backed by it
//   - *MessagingInstrumentation and *SQLInstrumentation when enabled in cfg
//
// The config is validated before anything is registered.
func Attach(services *servicex.ServiceCollection, cfg TracingConfig, opts ...ProviderOption) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	steps := []func() error{
		func() error { return servicex.AddInstance(services, cfg) },
		func() error {
			return servicex.AddSingleton[*TracerProvider](services, func() (*TracerProvider, error) {
				return NewTracerProvider(context.Background(), cfg, opts...)
			})
		},
		func() error {
			return servicex.AddSingleton[trace.TracerProvider](services, func(p *TracerProvider) trace.TracerProvider {
				return p.SDK()
			})
		},
	}
	if cfg.Instrumented(SubsystemMessaging) {
		steps = append(steps, func() error {
			return servicex.AddSingleton[*MessagingInstrumentation](services, func(p *TracerProvider) *MessagingInstrumentation {
				return NewMessagingInstrumentation(p.SDK(), p.Propagator(), cfg)
			})
		})
	}
	if cfg.Instrumented(SubsystemSQL) {
		steps = append(steps, func() error {
			return servicex.AddSingleton[*SQLInstrumentation](services, func(p *TracerProvider) *SQLInstrumentation {
				return NewSQLInstrumentation(p.SDK(), cfg)
			})
		})
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
