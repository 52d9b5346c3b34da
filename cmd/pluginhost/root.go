package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srediag/plugin-dylib/api"
	"github.com/srediag/plugin-dylib/internal/logging"
	"github.com/srediag/plugin-dylib/pkg/config"
	"github.com/srediag/plugin-dylib/pkg/dynlib"
	"github.com/srediag/plugin-dylib/pkg/plugin"
)

const (
	FlagSearchPath   = "search-path"
	FlagSearchEnv    = "search-env"
	FlagSymbol       = "symbol"
	FlagLogLevel     = "log-level"
	FlagConfig       = "config"
	FlagPluginType   = "type"
	FlagLibrariesEnv = "libraries-env"

	defaultSearchEnv    = "PLUGIN_DYLIB_SEARCH_PATH"
	defaultLibrariesEnv = "PLUGIN_DYLIB_LIBRARIES"
)

// host carries the state shared by every subcommand.
type host struct {
	opener dynlib.Opener
	logger *zap.Logger

	searchPath   []string
	searchEnv    string
	symbol       string
	logLevel     string
	configPath   string
	pluginType   string
	librariesEnv string
}

// newRootCmd builds the command tree. A nil opener opens libraries from
// disk.
func newRootCmd(opener dynlib.Opener) *cobra.Command {
	if opener == nil {
		opener = dynlib.OSOpener{}
	}
	h := &host{opener: opener, logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:          "pluginhost",
		Short:        "Load, inspect and serve plugins from dynamic libraries",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := logging.LevelFromEnv()
			if cmd.Flags().Changed(FlagLogLevel) {
				level = logging.ParseLevel(h.logLevel)
			}
			h.logger = logging.NewWithLevel("pluginhost", cmd.ErrOrStderr(), level)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&h.searchPath, FlagSearchPath, nil, "directories searched for bare library names")
	flags.StringVar(&h.searchEnv, FlagSearchEnv, defaultSearchEnv, "environment variable holding additional search directories")
	flags.StringVar(&h.symbol, FlagSymbol, api.DefaultRegistrationSymbol, "registration symbol exported by the libraries")
	flags.StringVar(&h.logLevel, FlagLogLevel, "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&h.configPath, FlagConfig, "", "plugin configuration file (yaml or json)")
	flags.StringVar(&h.pluginType, FlagPluginType, "", "plugin type whose libraries are loaded from --config")
	flags.StringVar(&h.librariesEnv, FlagLibrariesEnv, defaultLibrariesEnv, "environment variable listing libraries to load when none are given")

	cmd.AddCommand(newLoadCmd(h), newInspectCmd(h), newServeCmd(h), newVersionCmd())
	return cmd
}

func (h *host) managerOptions(extra ...plugin.Option) []plugin.Option {
	opts := []plugin.Option{
		plugin.WithOpener(h.opener),
		plugin.WithLogger(h.logger),
		plugin.WithSearchPath(h.searchPath...),
		plugin.WithRegistrationSymbol(h.symbol),
	}
	if _, ok := os.LookupEnv(h.searchEnv); ok {
		opts = append(opts, plugin.WithSearchPathFromEnv(h.searchEnv))
	}
	return append(opts, extra...)
}

// loadManager creates a manager and loads, in order of precedence, the
// libraries named in args, the libraries configured for --type, or the
// libraries listed in --libraries-env. On failure the manager is closed.
func (h *host) loadManager(ctx context.Context, args []string, extra ...plugin.Option) (*plugin.Manager[api.Plugin], error) {
	var (
		m   *plugin.Manager[api.Plugin]
		err error
	)
	switch {
	case len(args) > 0:
		m = plugin.New[api.Plugin](h.managerOptions(extra...)...)
		err = m.LoadAll(ctx, args)
	case h.pluginType != "":
		if h.configPath == "" {
			return nil, fmt.Errorf("--%s requires --%s", FlagPluginType, FlagConfig)
		}
		cfg, cerr := config.Load(h.configPath)
		if cerr != nil {
			return nil, cerr
		}
		m, err = config.NewManagerForType[api.Plugin](ctx, cfg, h.pluginType, h.managerOptions(extra...)...)
	default:
		m = plugin.New[api.Plugin](h.managerOptions(extra...)...)
		err = m.LoadFromEnv(ctx, h.librariesEnv)
	}
	if err != nil {
		if m != nil {
			_ = m.Close()
		}
		return nil, err
	}
	return m, nil
}
