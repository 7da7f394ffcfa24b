package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clockify-blocks/internal/widget"
)

func newInsertCmd(opts *options) *cobra.Command {
	var line int
	cmd := &cobra.Command{
		Use:   "insert FILE",
		Short: "Insert an empty tracker block into a Markdown file",
		Long: `Insert an empty clockify-timer block before the given line (0-based).
Without --line the block is appended. The file is created if missing.

Examples:
  clockify-blocks insert notes/today.md
  clockify-blocks insert notes/today.md --line 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if line < 0 {
				line = math.MaxInt
			}
			if err := a.InsertAt(cmd.Context(), args[0], line); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted tracker block into %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&line, "line", -1, "line to insert before (default: end of file)")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list FILE",
		Short: "List the tracker blocks of a Markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			views, err := a.Views(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			return printViews(cmd.OutOrStdout(), views...)
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func newClickCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "click FILE INDEX",
		Short: "Press the button of a tracker block: start, stop or save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, err := a.Click(cmd.Context(), args[0], index)
			if err != nil {
				return err
			}
			return printViews(cmd.OutOrStdout(), v)
		},
	}
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE INDEX TEXT...",
		Short: "Set the description of a tracker block",
		Long: `Set the description of a tracker block. Running trackers cannot be
described. Completed trackers are saved to Clockify right away.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			a, _, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, err := a.Describe(cmd.Context(), args[0], index, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			return printViews(cmd.OutOrStdout(), v)
		},
	}
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("INDEX must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func printViews(w io.Writer, views ...widget.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tSTATE\tDURATION\tACTION\tID\tDESCRIPTION")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", v.Block, v.State, v.Duration, v.Affordance.Tooltip, v.ID, v.Description)
	}
	return tw.Flush()
}
