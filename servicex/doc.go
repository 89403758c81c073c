// Package servicex is the dependency injection layer of a bus node.
//
// # Overview
//
// Bootstrap code fills a ServiceCollection with ServiceDescriptors, each one
// meaning "register ImplementationType as ServiceType with Lifetime". Data
// providers found by pluginx arrive as Transient descriptors, one per
// interface they implement. Extension modules implement Registrar and add
// their own descriptors. Build turns the collection into a Container.
//
// # Usage
//
//	services := servicex.NewServiceCollection()
//	_ = servicex.AddSingleton[storex.Store](services, storex.OpenFromConfig)
//	container, err := services.Build()
//	store, err := servicex.ResolveTyped[storex.Store](container)
//
// # Resolution rules
//
//   - The last registration of a type wins single resolution.
//   - ResolveAll returns every registration of a type in registration order.
//   - Constructor parameters are resolved recursively; cycles are reported.
//   - Singleton instances are built once per container, Scoped once per
//     scope, Transient on every resolution.
package servicex
