package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvSource_Prefix(t *testing.T) {
	t.Setenv("BUSNODE_TEST_PLUGIN_PATH", "/p")
	t.Setenv("OTHER_KEY", "x")

	snap, err := NewEnvSource(EnvOptions{Prefix: "BUSNODE_TEST_"}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap["PLUGIN_PATH"] != "/p" {
		t.Errorf("PLUGIN_PATH = %q, want %q", snap["PLUGIN_PATH"], "/p")
	}
	if _, ok := snap["OTHER_KEY"]; ok {
		t.Error("OTHER_KEY should be filtered by prefix")
	}
}

func TestFileSource_Formats(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"yaml", "node.yaml", "plugin:\n  path: /p\n  suffix: .Data.so\ntags: [a, b]\n"},
		{"toml", "node.toml", "tags = [\"a\", \"b\"]\n[plugin]\npath = \"/p\"\nsuffix = \".Data.so\"\n"},
		{"json", "node.json", `{"plugin":{"path":"/p","suffix":".Data.so"},"tags":["a","b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}

			snap, err := NewFileSource(path, FileOptions{}).Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if snap["PLUGIN_PATH"] != "/p" {
				t.Errorf("PLUGIN_PATH = %q, want /p", snap["PLUGIN_PATH"])
			}
			if snap["PLUGIN_SUFFIX"] != ".Data.so" {
				t.Errorf("PLUGIN_SUFFIX = %q, want .Data.so", snap["PLUGIN_SUFFIX"])
			}
			if snap["TAGS"] != "a,b" {
				t.Errorf("TAGS = %q, want a,b", snap["TAGS"])
			}
		})
	}
}

func TestFileSource_Optional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := NewFileSource(path, FileOptions{}).Load(context.Background()); err == nil {
		t.Error("Load() of missing required file should fail")
	}
	snap, err := NewFileSource(path, FileOptions{Optional: true}).Load(context.Background())
	if err != nil || len(snap) != 0 {
		t.Errorf("Load() = %v, %v; want empty snapshot", snap, err)
	}
}

func TestDecode_Unsupported(t *testing.T) {
	if _, err := Decode([]byte("a=1"), "ini"); err == nil {
		t.Error("Decode(ini) should fail")
	}
}
