package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/app"
	"github.com/fuunylmz/Re-aniname/internal/database"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past organize batches",
		Long: `Show batches recorded in the history database.

Examples:
  reaniname history                    # latest batches
  reaniname history show <batch-id>    # files of one batch
  reaniname history activity           # latest file outcomes
  reaniname history prune --older-than 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openHistory()
			if err != nil {
				return err
			}
			defer cleanup()

			batches, err := a.History.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, batches)
			}
			if len(batches) == 0 {
				ui.InfoMsg(out, "No batches recorded yet")
				return nil
			}
			fmt.Fprintln(out, ui.BatchesTable(batches))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of batches")

	cmd.AddCommand(newHistoryShowCmd(&asJSON))
	cmd.AddCommand(newHistoryActivityCmd(&asJSON))
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryShowCmd(asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the files of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openHistory()
			if err != nil {
				return err
			}
			defer cleanup()

			batch, files, err := a.History.GetBatch(cmd.Context(), args[0])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no batch with id %s", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if *asJSON {
				return printJSON(out, map[string]any{"batch": batch, "files": files})
			}
			fmt.Fprintln(out, ui.BatchesTable([]database.BatchRecord{*batch}))
			fmt.Fprintln(out, ui.BatchFilesTable(files))
			return nil
		},
	}
}

func newHistoryActivityCmd(asJSON *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent file outcomes from the activity journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openHistory()
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := a.Activity.Recent(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if *asJSON {
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				ui.InfoMsg(out, "No activity recorded yet")
				return nil
			}
			fmt.Fprintln(out, ui.ActivityTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "number of entries")
	return cmd
}

func newHistoryPruneCmd() *cobra.Command {
	var (
		olderThan time.Duration
		days      int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old batches and activity files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			a, cleanup, err := openHistory()
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := a.History.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if days > 0 {
				if err := a.Activity.PruneOld(days); err != nil {
					return fmt.Errorf("pruning activity: %w", err)
				}
			}
			ui.SuccessMsg(cmd.OutOrStdout(), "Removed %d batches", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "remove batches started before now minus this")
	cmd.Flags().IntVar(&days, "activity-days", 30, "keep this many days of activity files (0 keeps all)")
	return cmd
}

func openHistory() (*app.App, func(), error) {
	a, cleanup, err := setup(app.Options{}, nil)
	if err != nil {
		return nil, nil, err
	}
	if a.History == nil {
		cleanup()
		return nil, nil, fmt.Errorf("history is disabled ([history].enabled = false)")
	}
	return a, cleanup, nil
}
