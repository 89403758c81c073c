package servicex

import (
	"fmt"
	"reflect"
	"strings"

	"go.eggybyte.com/busnode/servicex/internal"
)

// ServiceCollection accumulates registrations before the container is built.
// It is owned by the bootstrap and is not safe for concurrent mutation.
type ServiceCollection struct {
	descriptors []ServiceDescriptor
}

// NewServiceCollection creates an empty collection.
func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{}
}

// Add validates and appends a descriptor.
func (c *ServiceCollection) Add(d ServiceDescriptor) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("add %s: %w", d.ServiceType, err)
	}
	if d.ImplementationType == nil {
		if d.Instance != nil {
			d.ImplementationType = reflect.TypeOf(d.Instance)
		} else {
			d.ImplementationType = reflect.TypeOf(d.Constructor).Out(0)
		}
	}
	c.descriptors = append(c.descriptors, d)
	return nil
}

// Provide registers constructor under its own result type and under every
// type in as.
func (c *ServiceCollection) Provide(lifetime Lifetime, constructor any, as ...reflect.Type) error {
	ct := reflect.TypeOf(constructor)
	if ct == nil || ct.Kind() != reflect.Func || ct.NumOut() == 0 {
		return fmt.Errorf("provide: constructor must be a function with a result, got %T", constructor)
	}

	services := append([]reflect.Type{ct.Out(0)}, as...)
	for _, st := range services {
		if err := c.Add(ServiceDescriptor{
			ServiceType:        st,
			ImplementationType: ct.Out(0),
			Lifetime:           lifetime,
			Constructor:        constructor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Descriptors returns a copy of the registrations in insertion order.
func (c *ServiceCollection) Descriptors() []ServiceDescriptor {
	out := make([]ServiceDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len returns the number of registrations.
func (c *ServiceCollection) Len() int { return len(c.descriptors) }

// Contains reports whether serviceType has at least one registration.
func (c *ServiceCollection) Contains(serviceType reflect.Type) bool {
	for _, d := range c.descriptors {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

// Build freezes the collection into a Container. Every constructor parameter
// must be satisfiable by some registration.
func (c *ServiceCollection) Build() (*Container, error) {
	bindings := make([]*internal.Binding, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		b := &internal.Binding{Service: d.ServiceType, Lifetime: d.Lifetime}
		if d.Instance != nil {
			b.Instance = reflect.New(d.ServiceType).Elem()
			b.Instance.Set(reflect.ValueOf(d.Instance))
		} else {
			b.Constructor = reflect.ValueOf(d.Constructor)
		}
		bindings = append(bindings, b)
	}

	impl := internal.NewContainer(bindings)
	if missing := impl.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("unresolvable dependencies: %s", strings.Join(missing, "; "))
	}
	return &Container{impl: impl, scope: impl.Root()}, nil
}

// AddTransient registers constructor as service S, built on every resolution.
func AddTransient[S any](c *ServiceCollection, constructor any) error {
	return add[S](c, Transient, constructor)
}

// AddScoped registers constructor as service S, built once per scope.
func AddScoped[S any](c *ServiceCollection, constructor any) error {
	return add[S](c, Scoped, constructor)
}

// AddSingleton registers constructor as service S, built once per container.
func AddSingleton[S any](c *ServiceCollection, constructor any) error {
	return add[S](c, Singleton, constructor)
}

// AddInstance registers an existing value as singleton service S.
func AddInstance[S any](c *ServiceCollection, instance S) error {
	return c.Add(ServiceDescriptor{
		ServiceType: TypeOf[S](),
		Lifetime:    Singleton,
		Instance:    any(instance),
	})
}

func add[S any](c *ServiceCollection, lifetime Lifetime, constructor any) error {
	return c.Add(ServiceDescriptor{
		ServiceType: TypeOf[S](),
		Lifetime:    lifetime,
		Constructor: constructor,
	})
}
