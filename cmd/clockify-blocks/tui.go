package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"clockify-blocks/internal/ui"
)

func newTUICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui FILE",
		Short: "Show live trackers of a Markdown file in the terminal",
		Long: `Render every tracker block of FILE with a running duration.
The view follows edits made to FILE by other programs. Logs go to
tui.log in the config directory while the UI owns the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(opts.configDir, 0o755); err != nil {
				return err
			}
			f, err := tea.LogToFile(filepath.Join(opts.configDir, "tui.log"), "")
			if err != nil {
				return err
			}
			defer f.Close()
			opts.log = newLogger(f, opts.verbose)

			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Open(args[0]); err != nil {
				return err
			}
			err = ui.Run(cmd.Context(), a, args[0], a.RefreshInterval(), opts.log)
			if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
				opts.log.Info("shutting down", slog.String("reason", cmd.Context().Err().Error()))
				return nil
			}
			return err
		},
	}
}
