// Package pluginx discovers pluggable data providers and extension modules.
//
// # Overview
//
// An Assembly is a unit of pluggable code: a list of exported types plus the
// interface contracts it declares. Assemblies reach the node in two ways:
//
//   - compiled in: the package calls RegisterAssembly from init() and a
//     marker file in the discovery directory activates it by file name
//     without extension
//   - as a Go plugin (-buildmode=plugin) exporting an Assembly symbol
//
// The bootstrap pipeline is:
//
//  1. Locate: load every file directly under the discovery directory whose
//     name ends with the suffix (default ".Data.so"), ordered by file name
//  2. ScanProviders: every exported concrete type named "...Provider"
//     becomes one Transient registration per declared interface it implements
//  3. InvokeRegistrars: every exported type implementing servicex.Registrar
//     is built with its zero-argument constructor and Register is called once
//
// Types are ordered by package path and name, so the registrations and the
// registrar call order are the same on every run.
//
// # Errors
//
// A missing discovery directory is a CONFIGURATION error; a file that fails
// to load is PLUGIN_LOAD (or a logged warning with WithSkipFailed); registrar
// failures are REGISTRAR_INSTANTIATION and REGISTRAR_EXECUTION.
package pluginx
