// Package internal provides the dependency injection container behind servicex.
package internal

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Lifetime controls how often a binding's constructor runs.
type Lifetime int

const (
	// Transient builds a new instance on every resolution.
	Transient Lifetime = iota
	// Scoped builds one instance per scope.
	Scoped
	// Singleton builds one instance per container.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case Scoped:
		return "Scoped"
	case Singleton:
		return "Singleton"
	}
	return fmt.Sprintf("Lifetime(%d)", int(l))
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Binding is one registration: a service type and how to build it.
type Binding struct {
	Service     reflect.Type
	Lifetime    Lifetime
	Constructor reflect.Value // func(deps...) (T) or (T, error)
	Instance    reflect.Value // pre-built value; Constructor is ignored when valid

	once  sync.Mutex
	built bool
	value reflect.Value
}

// ValidateConstructor checks that fn is a function returning a value
// assignable to service, optionally followed by an error.
func ValidateConstructor(service reflect.Type, fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return fmt.Errorf("constructor for %s must be a function", service)
	}
	if fn.IsNil() {
		return fmt.Errorf("constructor for %s is nil", service)
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		return fmt.Errorf("constructor for %s must not be variadic: %s", service, ft)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return fmt.Errorf("constructor for %s: second result must be error, got %s", service, ft.Out(1))
		}
	default:
		return fmt.Errorf("constructor for %s must return 1 or 2 values, signature %s", service, ft)
	}
	if !ft.Out(0).AssignableTo(service) {
		return fmt.Errorf("constructor result %s is not assignable to %s", ft.Out(0), service)
	}
	return nil
}

// Container holds bindings and singleton instances. It is safe for
// concurrent resolution once built.
type Container struct {
	bindings map[reflect.Type][]*Binding
	root     *Scope
}

// NewContainer indexes bindings by service type, keeping registration order.
// The last binding for a type wins single resolution.
func NewContainer(bindings []*Binding) *Container {
	c := &Container{bindings: make(map[reflect.Type][]*Binding)}
	for _, b := range bindings {
		c.bindings[b.Service] = append(c.bindings[b.Service], b)
	}
	c.root = c.NewScope()
	return c
}

// Root returns the container-wide scope.
func (c *Container) Root() *Scope { return c.root }

// Has reports whether typ has at least one binding.
func (c *Container) Has(typ reflect.Type) bool {
	return len(c.bindings[typ]) > 0
}

// Missing lists constructor parameters that no binding satisfies.
func (c *Container) Missing() []string {
	var missing []string
	seen := map[string]bool{}
	for _, list := range c.bindings {
		for _, b := range list {
			if b.Instance.IsValid() {
				continue
			}
			ft := b.Constructor.Type()
			for i := 0; i < ft.NumIn(); i++ {
				in := ft.In(i)
				if c.Has(in) || isSliceOfBound(c, in) {
					continue
				}
				msg := fmt.Sprintf("%s needs %s", b.Service, in)
				if !seen[msg] {
					seen[msg] = true
					missing = append(missing, msg)
				}
			}
		}
	}
	return missing
}

func isSliceOfBound(c *Container, t reflect.Type) bool {
	return t.Kind() == reflect.Slice && c.Has(t.Elem())
}

// NewScope creates a scope whose Scoped bindings are built at most once.
func (c *Container) NewScope() *Scope {
	return &Scope{container: c, scoped: make(map[*Binding]reflect.Value)}
}

// Scope resolves services; scoped instances are cached per scope.
type Scope struct {
	container *Container
	mu        sync.Mutex
	scoped    map[*Binding]reflect.Value
}

// Get resolves the last binding registered for typ.
// A []T parameter with no direct binding resolves every binding of T.
func (s *Scope) Get(typ reflect.Type) (reflect.Value, error) {
	return s.get(typ, nil)
}

// GetAll resolves every binding of typ in registration order.
func (s *Scope) GetAll(typ reflect.Type) ([]reflect.Value, error) {
	return s.getAll(typ, nil)
}

func (s *Scope) get(typ reflect.Type, path []reflect.Type) (reflect.Value, error) {
	list := s.container.bindings[typ]
	if len(list) == 0 {
		if typ.Kind() == reflect.Slice {
			if items, err := s.getAll(typ.Elem(), path); err == nil && len(items) > 0 {
				out := reflect.MakeSlice(typ, 0, len(items))
				return reflect.Append(out, items...), nil
			}
		}
		return reflect.Value{}, fmt.Errorf("no constructor registered for type %s", typ)
	}
	return s.build(list[len(list)-1], path)
}

func (s *Scope) getAll(typ reflect.Type, path []reflect.Type) ([]reflect.Value, error) {
	list := s.container.bindings[typ]
	out := make([]reflect.Value, 0, len(list))
	for _, b := range list {
		v, err := s.build(b, path)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Scope) build(b *Binding, path []reflect.Type) (reflect.Value, error) {
	if b.Instance.IsValid() {
		return b.Instance, nil
	}
	for _, p := range path {
		if p == b.Service {
			return reflect.Value{}, fmt.Errorf("circular dependency detected: %s", formatPath(append(path, b.Service)))
		}
	}
	path = append(path, b.Service)

	switch b.Lifetime {
	case Singleton:
		b.once.Lock()
		defer b.once.Unlock()
		if b.built {
			return b.value, nil
		}
		v, err := s.call(b, path)
		if err != nil {
			return reflect.Value{}, err
		}
		b.value, b.built = v, true
		return v, nil
	case Scoped:
		s.mu.Lock()
		if v, ok := s.scoped[b]; ok {
			s.mu.Unlock()
			return v, nil
		}
		s.mu.Unlock()
		v, err := s.call(b, path)
		if err != nil {
			return reflect.Value{}, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev, ok := s.scoped[b]; ok {
			return prev, nil
		}
		s.scoped[b] = v
		return v, nil
	default:
		return s.call(b, path)
	}
}

func (s *Scope) call(b *Binding, path []reflect.Type) (reflect.Value, error) {
	ft := b.Constructor.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		arg, err := s.get(ft.In(i), path)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("resolve %s for %s: %w", ft.In(i), b.Service, err)
		}
		args[i] = arg
	}

	results := b.Constructor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("construct %s: %w", b.Service, results[1].Interface().(error))
	}

	v := results[0]
	if v.Type() != b.Service {
		// Convert concrete results to the interface they were registered as.
		conv := reflect.New(b.Service).Elem()
		conv.Set(v)
		v = conv
	}
	return v, nil
}

func formatPath(path []reflect.Type) string {
	parts := make([]string, len(path))
	for i, t := range path {
		parts[i] = t.String()
	}
	return strings.Join(parts, " -> ")
}
