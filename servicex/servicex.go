package servicex

import (
	"fmt"
	"reflect"

	"go.eggybyte.com/busnode/configx"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/servicex/internal"
)

// Lifetime controls how often a registration's constructor runs.
type Lifetime = internal.Lifetime

const (
	Transient = internal.Transient
	Scoped    = internal.Scoped
	Singleton = internal.Singleton
)

// ServiceDescriptor describes one registration: "register ImplementationType
// as ServiceType with Lifetime".
type ServiceDescriptor struct {
	ServiceType        reflect.Type
	ImplementationType reflect.Type
	Lifetime           Lifetime

	// Constructor is func(deps...) (T) or func(deps...) (T, error) where T is
	// assignable to ServiceType. Parameters are resolved from the container.
	Constructor any

	// Instance is a pre-built value; Constructor is ignored when set.
	Instance any
}

func (d ServiceDescriptor) String() string {
	impl := "<instance>"
	if d.ImplementationType != nil {
		impl = d.ImplementationType.String()
	}
	return fmt.Sprintf("%s => %s (%s)", d.ServiceType, impl, d.Lifetime)
}

// Validate checks that the descriptor can produce its service type.
func (d ServiceDescriptor) Validate() error {
	if d.ServiceType == nil {
		return fmt.Errorf("service type is required")
	}
	if d.Instance != nil {
		if !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
			return fmt.Errorf("instance %T is not assignable to %s", d.Instance, d.ServiceType)
		}
		return nil
	}
	return internal.ValidateConstructor(d.ServiceType, reflect.ValueOf(d.Constructor))
}

// HostContext is handed to every Registrar. It exposes what the host knows
// at registration time.
type HostContext struct {
	EndpointName string
	Environment  string
	ContentRoot  string
	Config       configx.Manager
	Logger       log.Logger
	Properties   map[string]any
}

// Registrar is implemented by extension modules that add their own
// registrations. Each registrar is constructed with its zero-argument
// constructor and Register is called exactly once during bootstrap.
// Registrars must not depend on the order in which they run.
type Registrar interface {
	Register(host *HostContext, services *ServiceCollection) error
}

// Resolver resolves services by pointer target.
type Resolver interface {
	Resolve(target any) error
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
