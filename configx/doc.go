// Package configx provides configuration loading for bus nodes.
//
// Sources are merged in order with later sources winning: a YAML, TOML or
// JSON file (keys flattened to UPPER_SNAKE), the process environment, then
// explicit overrides such as command-line flags. Bind fills structs through
// `env` and `default` tags and validates them with go-playground/validator.
//
//	cfg, err := configx.LoadNodeConfig(ctx, logger, "node.yaml", map[string]string{
//		"LOG_LEVEL": "debug",
//	})
//
// NodeConfig covers plugin discovery (PLUGIN_PATH, PLUGIN_SUFFIX,
// PLUGIN_SKIP_FAILED), trace export (ZIPKIN_ENDPOINT, JAEGER_HOST,
// JAEGER_PORT, OTEL_EXPORTER_OTLP_ENDPOINT), logging, ports and the
// optional database used by data providers.
package configx
