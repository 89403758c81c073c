package testingx

import (
	"os"
	"path/filepath"
	"testing"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
)

func TestMockLogger(t *testing.T) {
	logger := NewMockLogger(t)
	child := logger.With("endpoint", "Divergent.ITOps")

	child.Info("assemblies located", log.Int("count", 2))
	logger.Warn("skipped", "path", "/p/bad.Data.so")

	e := logger.AssertLogged("INFO", "assemblies located")
	if e.Fields["endpoint"] != "Divergent.ITOps" || e.Fields["count"] != 2 {
		t.Errorf("Fields = %v, want endpoint and count", e.Fields)
	}
	if len(logger.Entries()) != 2 {
		t.Errorf("len(Entries()) = %d, want 2", len(logger.Entries()))
	}
	if _, ok := logger.Find("ERROR", "skipped"); ok {
		t.Error("Find matched the wrong level")
	}
}

func TestAssertCode(t *testing.T) {
	AssertCode(t, errors.PluginLoad("op", "x", nil), errors.CodePluginLoad)
}

func TestDiscoveryDir(t *testing.T) {
	dir := DiscoveryDir(t, "a.Data.so", "sub/", "sub/b.Data.so")

	if _, err := os.Stat(filepath.Join(dir, "a.Data.so")); err != nil {
		t.Errorf("a.Data.so missing: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "sub"))
	if err != nil || !info.IsDir() {
		t.Errorf("sub should be a directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "b.Data.so")); err != nil {
		t.Errorf("sub/b.Data.so missing: %v", err)
	}
}
