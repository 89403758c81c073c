package pluginx

import (
	"fmt"
	"reflect"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
	"go.eggybyte.com/busnode/servicex"
)

var registrarType = servicex.TypeOf[servicex.Registrar]()

// DiscoverRegistrars returns the exported concrete types implementing
// servicex.Registrar, ordered by full name. A value type with a
// pointer-receiver Register is returned as its pointer type.
func DiscoverRegistrars(assemblies []*Assembly) []Type {
	var out []Type
	seen := map[reflect.Type]bool{}
	for _, st := range sortedTypes(assemblies) {
		if !st.Exported() || !st.Concrete() {
			continue
		}
		t := st.Type.satisfying(registrarType)
		if !t.Type.Implements(registrarType) || seen[t.Type] {
			continue
		}
		seen[t.Type] = true
		out = append(out, t)
	}
	return out
}

// InvokeRegistrars constructs every registrar with its zero-argument
// constructor and calls Register once on each, in DiscoverRegistrars order.
// It returns the registrars invoked, in order. The first failure stops the
// run; registrars after it are not invoked.
func InvokeRegistrars(assemblies []*Assembly, host *servicex.HostContext, services *servicex.ServiceCollection) ([]Type, error) {
	const op = "pluginx.InvokeRegistrars"
	logger := log.Nop()
	if host != nil && host.Logger != nil {
		logger = host.Logger
	}

	var invoked []Type
	for _, t := range DiscoverRegistrars(assemblies) {
		reg, err := instantiate(t)
		if err != nil {
			return invoked, errors.RegistrarInstantiation(op, t.FullName(), err)
		}

		before := services.Len()
		if err := invoke(reg, host, services); err != nil {
			return invoked, errors.RegistrarExecution(op, t.FullName(), err)
		}
		invoked = append(invoked, t)
		logger.Debug("registrar invoked",
			log.Str("registrar", t.FullName()),
			log.Int("added", services.Len()-before),
		)
	}
	return invoked, nil
}

func instantiate(t Type) (reg servicex.Registrar, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	ctor := reflect.ValueOf(t.Constructor())
	if ctor.Kind() != reflect.Func || ctor.IsNil() {
		return nil, fmt.Errorf("constructor is %T, want a function", t.New)
	}
	ft := ctor.Type()
	if ft.NumIn() != 0 {
		return nil, fmt.Errorf("constructor must take no arguments, has signature %s", ft)
	}
	if err := validateResults(ft, t.Type); err != nil {
		return nil, err
	}

	results := ctor.Call(nil)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	v := results[0]
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, fmt.Errorf("constructor returned nil")
	}
	reg, ok := v.Interface().(servicex.Registrar)
	if !ok {
		return nil, fmt.Errorf("constructed %s does not implement servicex.Registrar", v.Type())
	}
	return reg, nil
}

func validateResults(ft, want reflect.Type) error {
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == reflect.TypeOf((*error)(nil)).Elem():
	default:
		return fmt.Errorf("constructor must return %s or (%s, error), has signature %s", want, want, ft)
	}
	if !ft.Out(0).AssignableTo(want) && !ft.Out(0).Implements(registrarType) {
		return fmt.Errorf("constructor result %s is not %s", ft.Out(0), want)
	}
	return nil
}

func invoke(reg servicex.Registrar, host *servicex.HostContext, services *servicex.ServiceCollection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register panicked: %v", r)
		}
	}()
	return reg.Register(host, services)
}
