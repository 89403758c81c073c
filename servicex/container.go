package servicex

import (
	"fmt"
	"reflect"

	"go.eggybyte.com/busnode/servicex/internal"
)

// Container resolves services built from a ServiceCollection. It is safe for
// concurrent use.
type Container struct {
	impl  *internal.Container
	scope *internal.Scope
}

var _ Resolver = (*Container)(nil)

// Resolve stores the service of target's element type into target.
//
//	var repo CustomerRepository
//	err := container.Resolve(&repo)
func (c *Container) Resolve(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("resolve: target must be a non-nil pointer, got %T", target)
	}
	v, err := c.scope.Get(rv.Elem().Type())
	if err != nil {
		return err
	}
	rv.Elem().Set(v)
	return nil
}

// Has reports whether typ has a registration.
func (c *Container) Has(typ reflect.Type) bool { return c.impl.Has(typ) }

// NewScope returns a child container whose Scoped services are shared
// within it only. Singletons stay shared with the parent.
func (c *Container) NewScope() *Container {
	return &Container{impl: c.impl, scope: c.impl.NewScope()}
}

// ResolveTyped resolves a service of type T.
//
//	provider, err := servicex.ResolveTyped[CustomerInfoProvider](container)
func ResolveTyped[T any](c *Container) (T, error) {
	var zero T
	v, err := c.scope.Get(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("resolved value %s is not assignable to %s", v.Type(), TypeOf[T]())
	}
	return out, nil
}

// ResolveAll resolves every registration of T in registration order.
func ResolveAll[T any](c *Container) ([]T, error) {
	vals, err := c.scope.GetAll(TypeOf[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.Interface().(T))
	}
	return out, nil
}

// MustResolve is ResolveTyped that panics on failure. Use it only where a
// missing registration is a programming error.
func MustResolve[T any](c *Container) T {
	v, err := ResolveTyped[T](c)
	if err != nil {
		panic(err)
	}
	return v
}
