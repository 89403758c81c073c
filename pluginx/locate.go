package pluginx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.eggybyte.com/busnode/core/errors"
	"go.eggybyte.com/busnode/core/log"
)

// DefaultSuffix is the file-name ending of data-provider assemblies.
const DefaultSuffix = ".Data.so"

// Locator finds and loads assemblies in a discovery directory.
type Locator struct {
	loader     Loader
	logger     log.Logger
	skipFailed bool
}

// LocateOption configures a Locator.
type LocateOption func(*Locator)

// WithLoader replaces the default catalog-then-plugin loader.
func WithLoader(l Loader) LocateOption {
	return func(loc *Locator) { loc.loader = l }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) LocateOption {
	return func(loc *Locator) { loc.logger = l }
}

// WithSkipFailed makes a file that fails to load a logged warning instead of
// aborting the whole locate.
func WithSkipFailed(skip bool) LocateOption {
	return func(loc *Locator) { loc.skipFailed = skip }
}

// NewLocator creates a Locator.
func NewLocator(opts ...LocateOption) *Locator {
	loc := &Locator{loader: DefaultLoader(), logger: log.Nop()}
	for _, opt := range opts {
		opt(loc)
	}
	return loc
}

// Locate is shorthand for NewLocator(opts...).Locate.
func Locate(ctx context.Context, root, suffix string, opts ...LocateOption) ([]*Assembly, error) {
	return NewLocator(opts...).Locate(ctx, root, suffix)
}

// Locate loads every file directly under root whose name ends with suffix
// (case-sensitive). Subdirectories are not searched. Results are ordered by
// file name. The assembly name handed to the loader is the file name without
// its extension, e.g. "Divergent.Customers.Data".
//
// A missing or unreadable root is a CONFIGURATION error. A file that fails to
// load is a PLUGIN_LOAD error naming the file, unless skipping is enabled.
func (l *Locator) Locate(ctx context.Context, root, suffix string) ([]*Assembly, error) {
	const op = "pluginx.Locate"

	if suffix == "" {
		return nil, errors.Configuration(op, "assembly suffix is required", nil)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Configuration(op, "discovery path "+root+" is not accessible", err)
	}
	if !info.IsDir() {
		return nil, errors.Configuration(op, "discovery path "+root+" is not a directory", nil)
	}

	// os.ReadDir returns entries sorted by file name.
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Configuration(op, "read discovery path "+root, err)
	}

	var out []*Assembly
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.CodeAborted, op, err)
		}

		path := filepath.Join(root, e.Name())
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		a, err := l.loader.Load(ctx, path, name)
		if err != nil {
			if l.skipFailed {
				l.logger.Warn("skipping assembly that failed to load", log.Str("path", path), log.Err(err))
				continue
			}
			return nil, errors.PluginLoad(op, path, err)
		}

		l.logger.Debug("assembly loaded",
			log.Str("assembly", a.Name),
			log.Str("path", path),
			log.Int("types", len(a.Types)),
			log.Int("contracts", len(a.Contracts)),
		)
		out = append(out, a)
	}

	l.logger.Info("assemblies located", log.Str("root", root), log.Str("suffix", suffix), log.Int("count", len(out)))
	return out, nil
}

// ResolveRoot makes a relative discovery path absolute against the directory
// of the running executable, so the node finds its providers regardless of
// the working directory it was started from.
func ResolveRoot(root string) (string, error) {
	if filepath.IsAbs(root) {
		return filepath.Clean(root), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Configuration("pluginx.ResolveRoot", "locate executable", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), root), nil
}
