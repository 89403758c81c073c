package pluginx

import (
	"fmt"
	"go/token"
	"reflect"
	"sort"
)

// Type is one exported type of an assembly.
type Type struct {
	Name    string       // simple name, e.g. "CustomersProvider"
	PkgPath string       // import path of the declaring package
	Type    reflect.Type // the type values are constructed as, usually a pointer

	// New builds an instance. It is func(deps...) T or func(deps...) (T, error)
	// with T assignable to Type. Nil means "allocate the zero value".
	New any
}

// FullName is the package-qualified name used for deterministic ordering.
func (t Type) FullName() string {
	if t.PkgPath == "" {
		return t.Name
	}
	return t.PkgPath + "." + t.Name
}

// Exported reports whether the type is public.
func (t Type) Exported() bool { return token.IsExported(t.Name) }

// Concrete reports whether values of the type can be constructed.
func (t Type) Concrete() bool {
	return t.Type != nil && t.Type.Kind() != reflect.Interface
}

// Constructor returns New, or a zero-argument function allocating the zero
// value of Type when New is nil.
func (t Type) Constructor() any {
	if t.New != nil {
		return t.New
	}
	typ := t.Type
	fn := reflect.FuncOf(nil, []reflect.Type{typ}, false)
	return reflect.MakeFunc(fn, func([]reflect.Value) []reflect.Value {
		if typ.Kind() == reflect.Pointer {
			return []reflect.Value{reflect.New(typ.Elem())}
		}
		return []reflect.Value{reflect.Zero(typ)}
	}).Interface()
}

// satisfying returns t, or t re-expressed as a pointer type when its value
// type misses one of ifaces that only the pointer method set satisfies. The
// pointer form allocates a new T and copies the constructed value into it.
func (t Type) satisfying(ifaces ...reflect.Type) Type {
	if t.Type == nil || t.Type.Kind() == reflect.Pointer {
		return t
	}
	ptr := reflect.PointerTo(t.Type)
	for _, c := range ifaces {
		if !t.Type.Implements(c) && ptr.Implements(c) {
			return t.addressed()
		}
	}
	return t
}

func (t Type) addressed() Type {
	elem := t.Type
	out := t
	out.Type = reflect.PointerTo(elem)

	ctor := reflect.ValueOf(t.Constructor())
	if ctor.Kind() != reflect.Func || ctor.IsNil() {
		return out
	}
	ft := ctor.Type()
	if ft.NumOut() == 0 || !ft.Out(0).AssignableTo(elem) {
		return out
	}

	in := make([]reflect.Type, ft.NumIn())
	for i := range in {
		in[i] = ft.In(i)
	}
	results := []reflect.Type{out.Type}
	for i := 1; i < ft.NumOut(); i++ {
		results = append(results, ft.Out(i))
	}
	fn := reflect.FuncOf(in, results, ft.IsVariadic())
	out.New = reflect.MakeFunc(fn, func(args []reflect.Value) []reflect.Value {
		var res []reflect.Value
		if ft.IsVariadic() {
			res = ctor.CallSlice(args)
		} else {
			res = ctor.Call(args)
		}
		p := reflect.New(elem)
		p.Elem().Set(res[0])
		res[0] = p
		return res
	}).Interface()
	return out
}

// Export describes T for inclusion in an assembly. T is the constructed type,
// typically a pointer to a struct. constructor may be nil.
//
//	pluginx.Export[*CustomersProvider](NewCustomersProvider)
func Export[T any](constructor any) Type {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	named := typ
	for named.Kind() == reflect.Pointer {
		named = named.Elem()
	}
	return Type{
		Name:    named.Name(),
		PkgPath: named.PkgPath(),
		Type:    typ,
		New:     constructor,
	}
}

// Contract returns the reflect.Type of interface I. It panics when I is not
// an interface, which is a programming error in the declaring assembly.
func Contract[I any]() reflect.Type {
	typ := reflect.TypeOf((*I)(nil)).Elem()
	if typ.Kind() != reflect.Interface {
		panic(fmt.Sprintf("pluginx: Contract type %s is not an interface", typ))
	}
	return typ
}

// Assembly is a loaded unit of pluggable code: the types it exports and the
// interface contracts it declares. It is immutable once loaded and
// identified by its origin Path.
type Assembly struct {
	Name      string
	Path      string
	Types     []Type
	Contracts []reflect.Type
}

// NewAssembly creates an assembly description for the catalog or for the
// Assembly symbol of a shared object.
func NewAssembly(name string, types []Type, contracts ...reflect.Type) *Assembly {
	return &Assembly{Name: name, Types: types, Contracts: contracts}
}

// at returns a copy of a bound to path.
func (a *Assembly) at(path string) *Assembly {
	return &Assembly{
		Name:      a.Name,
		Path:      path,
		Types:     append([]Type(nil), a.Types...),
		Contracts: append([]reflect.Type(nil), a.Contracts...),
	}
}

func (a *Assembly) String() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.Path)
}

// typeFullName names reflect types by import path rather than package name.
func typeFullName(t reflect.Type) string {
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// contractsOf returns the union of declared contracts, de-duplicated and
// sorted by full name.
func contractsOf(assemblies []*Assembly, extra []reflect.Type) []reflect.Type {
	seen := map[reflect.Type]bool{}
	var out []reflect.Type
	add := func(t reflect.Type) {
		if t == nil || t.Kind() != reflect.Interface || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, a := range assemblies {
		for _, c := range a.Contracts {
			add(c)
		}
	}
	for _, c := range extra {
		add(c)
	}
	sort.Slice(out, func(i, j int) bool {
		return typeFullName(out[i]) < typeFullName(out[j])
	})
	return out
}

// sourcedType pairs a type with the assembly it came from.
type sourcedType struct {
	Type
	Assembly *Assembly
}

// sortedTypes flattens the assemblies' types ordered by full name, then
// assembly path. A reflect type exported by several assemblies is kept once.
func sortedTypes(assemblies []*Assembly) []sourcedType {
	var all []sourcedType
	for _, a := range assemblies {
		for _, t := range a.Types {
			all = append(all, sourcedType{Type: t, Assembly: a})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if fi, fj := all[i].FullName(), all[j].FullName(); fi != fj {
			return fi < fj
		}
		return all[i].Assembly.Path < all[j].Assembly.Path
	})

	seen := map[reflect.Type]bool{}
	out := all[:0]
	for _, st := range all {
		if st.Type.Type == nil || seen[st.Type.Type] {
			continue
		}
		seen[st.Type.Type] = true
		out = append(out, st)
	}
	return out
}
