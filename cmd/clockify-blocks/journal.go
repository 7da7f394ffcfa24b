package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clockify-blocks/internal/config"
	"clockify-blocks/internal/migrate"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply journal database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Journal.Driver == "" {
				return errors.New(config.KeyJournalDriver + " is not set, nothing to migrate")
			}
			if status {
				ms, err := migrate.Status(cmd.Context(), cfg.Journal.Driver, cfg.Journal.DSN)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tFILE\tAPPLIED")
				for _, m := range ms {
					fmt.Fprintf(tw, "%d\t%s\t%t\n", m.Version, m.File, m.Applied)
				}
				return tw.Flush()
			}
			if err := migrate.Run(cmd.Context(), cfg.Journal.Driver, cfg.Journal.DSN, opts.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "journal migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether they are applied")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history ENTRY_ID",
		Short: "Show the journaled saves of one Clockify time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			entries, err := a.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SAVED\tMETHOD\tSTART\tEND\tDOCUMENT\tDESCRIPTION")
			for _, e := range entries {
				end := "-"
				if e.End != nil {
					end = e.End.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.SavedAt.Format(time.RFC3339), e.Method, e.Start.Format(time.RFC3339), end, e.Document, e.Description)
			}
			return tw.Flush()
		},
	}
}
