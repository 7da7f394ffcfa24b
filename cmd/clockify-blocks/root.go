package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"clockify-blocks/internal/app"
	"clockify-blocks/internal/config"
)

// options are shared by every subcommand.
type options struct {
	configDir string
	verbose   bool
	log       *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "clockify-blocks",
		Short:         "Clockify time trackers embedded in Markdown notes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.log == nil {
				opts.log = newLogger(cmd.ErrOrStderr(), opts.verbose)
			}
			if opts.configDir == "" {
				dir, err := config.DefaultDir()
				if err != nil {
					return fmt.Errorf("config dir: %w", err)
				}
				opts.configDir = dir
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "directory holding config.yaml (default $XDG_CONFIG_HOME/clockify-blocks)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(
		newInsertCmd(opts),
		newListCmd(opts),
		newClickCmd(opts),
		newDescribeCmd(opts),
		newTUICmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newMigrateCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *options) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and builds the application. Missing
// Clockify settings are only warned about: blocks still work locally.
func (o *options) openApp(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	if err := cfg.Validate(); err != nil {
		o.log.Warn("clockify is not fully configured, saves will fail", slog.String("error", err.Error()))
	}
	a, err := app.New(ctx, o.log, cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to initialize app: %w", err)
	}
	return a, cfg, nil
}
