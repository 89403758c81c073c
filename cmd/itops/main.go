// Package main runs the Divergent.ITOps endpoint.
//
// Overview:
//   - Responsibility: Parse flags and run the node
//   - Key Types: Cobra root command
//   - Error Semantics: Any bootstrap or runtime error exits with status 1
//
// Usage:
//
//	itops --providers ./Providers --config itops.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"go.eggybyte.com/busnode/busx"
	"go.eggybyte.com/busnode/examples/itops/endpointconfig"
	"go.eggybyte.com/busnode/examples/itops/interfaces"
	"go.eggybyte.com/busnode/nodex"
	"go.eggybyte.com/busnode/pluginx"

	// Provider assemblies activated by the marker files in the providers directory.
	_ "go.eggybyte.com/busnode/examples/itops/customers"
	_ "go.eggybyte.com/busnode/examples/itops/shipping"
)

// EndpointName identifies this node on the bus and in traces.
const EndpointName busx.EndpointIdentity = "Divergent.ITOps"

var (
	configFile string
	providers  string
	suffix     string
	logLevel   string
	logFormat  string
	skipFailed bool
)

var rootCmd = &cobra.Command{
	Use:           "itops",
	Short:         "Run the Divergent.ITOps endpoint",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		return nodex.Run(cmd.Context(), opts...)
	},
}

var flagKeys = map[string]string{
	"providers":   "PLUGIN_PATH",
	"suffix":      "PLUGIN_SUFFIX",
	"log-level":   "LOG_LEVEL",
	"log-format":  "LOG_FORMAT",
	"skip-failed": "PLUGIN_SKIP_FAILED",
}

// flagOverrides maps explicitly set flags onto configuration keys, so flags
// win over the config file and the environment. A relative --providers is
// taken from the working directory; a relative PLUGIN_PATH from other
// sources stays relative to the executable.
func flagOverrides(cmd *cobra.Command) (map[string]string, error) {
	overrides := map[string]string{}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		value := f.Value.String()
		if flag == "providers" && value != "" {
			abs, err := filepath.Abs(value)
			if err != nil {
				return nil, fmt.Errorf("resolve --providers %q: %w", value, err)
			}
			value = abs
		}
		overrides[key] = value
	}
	return overrides, nil
}

func options(cmd *cobra.Command) ([]nodex.Option, error) {
	overrides, err := flagOverrides(cmd)
	if err != nil {
		return nil, err
	}
	return []nodex.Option{
		nodex.WithEndpointName(EndpointName),
		nodex.WithConfigFile(configFile),
		nodex.WithOverrides(overrides),
		nodex.WithContracts(
			pluginx.Contract[interfaces.CustomerInfoProvider](),
			pluginx.Contract[interfaces.ShippingInfoProvider](),
		),
		nodex.WithEndpointConfig(endpointconfig.Configure),
	}, nil
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML, TOML or JSON configuration file")
	flags.StringVar(&providers, "providers", "", "provider assembly directory (PLUGIN_PATH)")
	flags.StringVar(&suffix, "suffix", pluginx.DefaultSuffix, "provider assembly file suffix (PLUGIN_SUFFIX)")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error (LOG_LEVEL)")
	flags.StringVar(&logFormat, "log-format", "logfmt", "logfmt or json (LOG_FORMAT)")
	flags.BoolVar(&skipFailed, "skip-failed", false, "skip assemblies that fail to load (PLUGIN_SKIP_FAILED)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "itops: %v\n", err)
		os.Exit(1)
	}
}
