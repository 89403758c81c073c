// Package runtimex is the process host of a bus node.
//
// # Overview
//
// Services start one after another in the order given; if one fails, those
// already started are stopped in reverse order and the error is returned.
// Once all services run, the health and metrics servers accept traffic.
// Cancelling the context shuts the servers down and stops the services in
// reverse order within the shutdown timeout.
//
// # Endpoints
//
//   - /live: the process answers
//   - /health: every health checker passes
//   - /ready: services are running and every health checker passes
//   - /metrics: the configured Prometheus handler
package runtimex
