package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clockify-blocks/internal/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (file plus CLOCKIFY_* environment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), opts.configDir, cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store one setting in config.yaml",
		Long:  "Store one setting in config.yaml. Keys: " + strings.Join(config.Keys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(opts.configDir, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})
	return cmd
}

func printConfig(w io.Writer, dir string, cfg config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "config dir\t%s\n", dir)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyAPIToken, mask(cfg.Clockify.APIToken))
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyBaseEndpoint, cfg.Clockify.BaseEndpoint)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyWorkspace, cfg.Clockify.Workspace)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyProject, cfg.Clockify.Project)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyRefreshInterval, cfg.RefreshInterval)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyJournalDriver, cfg.Journal.Driver)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyJournalDSN, mask(cfg.Journal.DSN))
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyHTTPAddr, cfg.HTTP.Addr)
	fmt.Fprintf(tw, "%s\t%s\n", config.KeyVaultRoot, cfg.Vault.Root)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(tw, "problems\t%s\n", strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	return tw.Flush()
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
