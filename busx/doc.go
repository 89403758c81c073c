// Package busx describes a message-bus endpoint and the contract of the
// runtime that hosts it.
//
// An endpoint is created from its EndpointIdentity with defaults, adjusted by
// ConfigureFunc hooks through Apply, and started by a Runtime with access to
// the built service container. Failures while applying hooks are reported as
// ENDPOINT_CONFIGURATION errors.
//
//	cfg := busx.NewEndpointConfiguration("Divergent.ITOps")
//	if err := cfg.Apply(endpointconfig.Configure); err != nil {
//		return err
//	}
//	ep, err := runtime.Start(ctx, cfg, container)
package busx
