package configx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
)

func TestNewManagerRequiresSources(t *testing.T) {
	_, err := NewManager(context.Background(), Options{Logger: log.Nop()})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLaterSourcesWin(t *testing.T) {
	mgr, err := NewManager(context.Background(), Options{
		Logger: log.Nop(),
		Sources: []Source{
			MapSource{"PLUGIN_PATH": "/a", "PLUGIN_SUFFIX": ".Data.so"},
			MapSource{"PLUGIN_PATH": "/b", "PLUGIN_SUFFIX": ""},
		},
	})
	require.NoError(t, err)

	v, ok := mgr.Value("PLUGIN_PATH")
	assert.True(t, ok)
	assert.Equal(t, "/b", v)

	v, _ = mgr.Value("PLUGIN_SUFFIX")
	assert.Equal(t, ".Data.so", v, "empty values must not override")
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	cfg, err := LoadNodeConfig(context.Background(), log.Nop(), "", map[string]string{
		"LOG_LEVEL":     "info",
		"LOG_FORMAT":    "logfmt",
		"PLUGIN_PATH":   "../../../Providers",
		"PLUGIN_SUFFIX": ".Data.so",
		"DB_DRIVER":     "sqlite",
	})
	require.NoError(t, err)

	assert.Equal(t, "../../../Providers", cfg.Plugins.Path)
	assert.Equal(t, ".Data.so", cfg.Plugins.Suffix)
	assert.False(t, cfg.Plugins.SkipFailed)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoadNodeConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugin:
  path: /opt/providers
  skip-failed: true
zipkin:
  endpoint: http://zipkin:9411/api/v2/spans
jaeger:
  host: jaeger
  port: 4317
`), 0o644))

	cfg, err := LoadNodeConfig(context.Background(), log.Nop(), path, map[string]string{
		"LOG_LEVEL":  "debug",
		"LOG_FORMAT": "json",
		"DB_DRIVER":  "sqlite",
	})
	require.NoError(t, err)

	assert.Equal(t, "/opt/providers", cfg.Plugins.Path)
	assert.True(t, cfg.Plugins.SkipFailed)
	assert.Equal(t, "http://zipkin:9411/api/v2/spans", cfg.Tracing.ZipkinEndpoint)
	assert.Equal(t, "jaeger", cfg.Tracing.JaegerHost)
	assert.Equal(t, 4317, cfg.Tracing.JaegerPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidationFailureIsConfigurationError(t *testing.T) {
	_, err := LoadNodeConfig(context.Background(), log.Nop(), "", map[string]string{
		"LOG_LEVEL":          "loud",
		"LOG_FORMAT":         "logfmt",
		"DB_DRIVER":          "sqlite",
		"TRACE_SAMPLE_RATIO": "2",
	})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "TRACE_SAMPLE_RATIO")
}

func TestMissingFileIsConfigurationError(t *testing.T) {
	_, err := LoadNodeConfig(context.Background(), log.Nop(), filepath.Join(t.TempDir(), "absent.toml"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
