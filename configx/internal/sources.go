package internal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Source loads a flat key/value snapshot.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// EnvOptions configures the environment source.
type EnvOptions struct {
	Prefix string // only keys with this prefix are read; the prefix is stripped
}

// EnvSource reads configuration from the process environment.
type EnvSource struct {
	prefix string
}

// NewEnvSource creates a new environment variable source.
func NewEnvSource(opts EnvOptions) *EnvSource {
	return &EnvSource{prefix: opts.Prefix}
}

// Load reads the current environment.
func (s *EnvSource) Load(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.prefix != "" {
			if !strings.HasPrefix(key, s.prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.prefix)
		}
		out[key] = value
	}
	return out, nil
}

// FileOptions configures the file source.
type FileOptions struct {
	Format   string // "yaml", "toml" or "json"; detected from the extension when empty
	Optional bool   // a missing file yields an empty snapshot instead of an error
}

// FileSource reads a YAML, TOML or JSON document and flattens it into
// UPPER_SNAKE keys, e.g. plugin.path becomes PLUGIN_PATH.
type FileSource struct {
	path     string
	format   string
	optional bool
}

// NewFileSource creates a new file source.
func NewFileSource(path string, opts FileOptions) *FileSource {
	format := opts.Format
	if format == "" {
		format = DetectFormat(path)
	}
	return &FileSource{path: path, format: format, optional: opts.Optional}
}

// Load reads and flattens the file.
func (s *FileSource) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) && s.optional {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	tree, err := Decode(data, s.format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	out := make(map[string]string)
	Flatten("", tree, out)
	return out, nil
}

// DetectFormat maps a file extension to a format name.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// Decode parses data in the named format into a generic tree.
func Decode(data []byte, format string) (map[string]any, error) {
	tree := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return tree, nil
	}

	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &tree)
	case "toml":
		err = toml.Unmarshal(data, &tree)
	case "json":
		err = json.Unmarshal(data, &tree)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Flatten writes v into out under UPPER_SNAKE keys joined by underscores.
// Lists become comma-separated values.
func Flatten(prefix string, v any, out map[string]string) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			Flatten(joinKey(prefix, k), x[k], out)
		}
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, scalar(item))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = scalar(x)
	}
}

func joinKey(prefix, key string) string {
	key = strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
