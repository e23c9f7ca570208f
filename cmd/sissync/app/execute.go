package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"config":     "config",
	"verbose":    "verbose",
	"quiet":      "quiet",
	"no-color":   "no_color",
	"format":     "format",
	"log-level":  "log_level",
	"api-root":   "api_root",
	"username":   "username",
	"password":   "password",
	"token":      "token",
	"data-dir":   "data_dir",
	"entities":   "entities_file",
	"page-size":  "page_size",
	"rate-limit": "rate_limit",
}

// Execute runs the sissync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sissync",
		Short:   "Keystone SIS to apps API synchronizer",
		Version: a.version,
		Long: `sissync reconciles the apps API with the Keystone SIS exports.

Each entity is loaded from its export, compared with the remote collection
and brought in line: stale records are deleted, missing records created and
changed records updated. Records that refer to other entities are resolved
to remote URLs, creating the referenced records on demand.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.sissync.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("api-root", "", "URL of the API discovery document")
	flags.String("username", "", "API username")
	flags.String("password", "", "API password")
	flags.String("token", "", "API token (replaces username and password)")
	flags.String("data-dir", "", "directory holding the Keystone exports")
	flags.String("entities", "", "entity definition file (default is the built-in set)")
	flags.Int("page-size", 0, "records requested per page")
	flags.Float64("rate-limit", 0, "maximum requests per second (0 is unlimited)")

	rootCmd.SetVersionTemplate("sissync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs. It layers the parsed
// flags over the configuration and rebuilds the logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return bindErr
	}

	config, err := loadConfig(v, v.GetString("config"))
	if err != nil {
		return err
	}
	a.config = config

	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewSyncCommand())
	rootCmd.AddCommand(a.NewPlanCommand())
	rootCmd.AddCommand(a.NewEntitiesCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
