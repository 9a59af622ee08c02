// Command speaksmart runs the SpeakSmart Discord bot and its maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speaksmart/internal/config"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "speaksmart",
		Short:         "Discord bot for spoken-phrase practice and FAQ support with operator hand-off",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration; required only when set explicitly")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newPromptsCmd(opts),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}

// load reads the env file and the configuration, then installs the logger
// the configuration asks for.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	optional := true
	if f := cmd.Flag("env-file"); f != nil && f.Changed {
		optional = false
	}
	if err := config.LoadEnv(o.envFile, optional); err != nil {
		return nil, report(cmd, err)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, report(cmd, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", o.configPath))
		}
		return nil, report(cmd, err)
	}

	slog.SetDefault(newLogger(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat))
	return cfg, nil
}

// report prints err to the command's error stream and returns it, since the
// root command silences cobra's own error output.
func report(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "speaksmart: %v\n", err)
	return err
}
