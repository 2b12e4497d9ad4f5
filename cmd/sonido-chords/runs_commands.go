package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored detection runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := store.ListOptions{Limit: limit}
			for _, value := range statusFlags {
				status, err := store.ParseStatus(strings.TrimSpace(value))
				if err != nil {
					return err
				}
				opts.Statuses = append(opts.Statuses, status)
			}

			return ctx.withStore(cmd.Context(), func(s *store.Store) error {
				runs, err := s.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"runs": runs})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, detecting, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func runsTable(runs []store.RunSummary) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		key := run.Key
		if key == "" {
			key = "-"
		}
		rows = append(rows, []string{
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			string(run.Status),
			run.Source,
			key,
			fmt.Sprintf("%d", run.ChordCount),
			fmt.Sprintf("%.1fs", run.TotalDuration),
		})
	}
	return renderTable(
		[]string{"ID", "Created", "Status", "Source", "Key", "Chords", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the progression of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFormat)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(s *store.Store) error {
				run, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format == formatJSON {
					return writeJSON(cmd, run)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Run %s (%s) from %s [%s]\n", run.ID, run.Status, run.Source, run.InputFormat)
				if run.ErrorMessage != "" {
					fmt.Fprintf(w, "Error: %s\n", run.ErrorMessage)
				}
				if run.Progression == nil {
					return nil
				}
				fmt.Fprintln(w)
				return writeProgression(cmd, format, progressionOutput{
					RunID:       run.ID,
					Source:      run.Source,
					InputFormat: run.InputFormat,
					Progression: run.Progression,
					Stats:       run.Stats,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", formatText, "Output format: text, table, json or nashville")
	return cmd
}
