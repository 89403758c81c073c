// Package testingx holds test helpers: a recording logger, error-code
// assertions and discovery-directory fixtures.
package testingx
