// Package commands implements the plaza command line: the web server and
// the maintenance commands that work on the same store.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klabast/wb-services/plaza/internal/config"
	"github.com/klabast/wb-services/plaza/internal/logging"
)

// App carries the resolved configuration shared by all subcommands
type App struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zerolog.Logger
}

// persistent flag name to config key
var rootFlags = map[string]string{
	"config":        config.KeyConfigFile,
	"store-backend": config.KeyStoreBackend,
	"store-dir":     config.KeyStoreDir,
	"redis-url":     config.KeyRedisURL,
	"log-level":     config.KeyLogLevel,
	"log-format":    config.KeyLogFormat,
	"log-output":    config.KeyLogOutput,
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &App{v: config.New()}

	root := &cobra.Command{
		Use:   "plaza",
		Short: "Events site for The Plaza community hall",
		Long: `Plaza serves the public events listing for The Plaza community hall,
together with the admin interface used to maintain it.

Settings come from flags, PLAZA_* environment variables, .env files and an
optional plaza.yaml, in that order of precedence.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is ./plaza.yaml or /etc/plaza/plaza.yaml)")
	flags.String("store-backend", "", "event store backend: file, redis or memory")
	flags.String("store-dir", "", "data directory for the file backend")
	flags.String("redis-url", "", "Redis URL for the redis backend")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (auto, json, console)")
	flags.String("log-output", "", "log output (stderr, stdout, discard or a file path)")
	for name, key := range rootFlags {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", name, err))
		}
	}

	root.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "management", Title: "Management Commands:"},
	)
	root.AddCommand(
		newServeCommand(a),
		newEventsCommand(a),
		newHashPasswordCommand(a),
	)
	return root
}

// Execute runs the command line with args
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// setup loads .env files and the configuration, then installs the logger
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	config.LoadEnvFiles()

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Configure(cfg.Log)

	if cfg.ConfigFile != "" {
		a.logger.Debug().Str("file", cfg.ConfigFile).Msg("Using config file")
	}
	return nil
}
