package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
)

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile  string
	logLevel string
	config   *engine.ApplicationConfig
	// Hooks for tests.
	engineOptions []engine.Option
}

// openEngine builds an engine from the loaded configuration.
func (a *app) openEngine() (*engine.Engine, error) {
	return engine.New(a.config, a.engineOptions...)
}

// NewRootCommand builds the prism command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "prism",
		Short:         "prism - headless 3D model viewer and renderer benchmark",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := engine.LoadApplicationConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				config.Application.LogLevel = a.logLevel
			}
			core.SetLogLevel(core.ParseLogLevel(config.Application.LogLevel))
			a.config = config
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", engine.DefaultConfigFile, "config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newBenchCommand(a),
		newViewCommand(a),
		newInspectCommand(a),
		newHistoryCommand(a),
		newTiersCommand(),
		newFormatsCommand(),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command line. ctx is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), warnStyle.Render("error: "+err.Error()))
		return err
	}
	return nil
}

func newTiersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List the benchmark tiers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), renderTiers(benchmark.Tiers()))
		},
	}
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported model formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), renderFormats(assets.SupportedFormats()))
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.config.Encode(cmd.OutOrStdout())
		},
	}
}
