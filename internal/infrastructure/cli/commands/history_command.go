package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/dexplorer/internal/app"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/infrastructure/cli/helpers"
	"github.com/doeshing/dexplorer/internal/ports"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container, prompter ports.ConfirmationPrompter) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the execution history",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistorySearchCommand(container),
		newHistoryClearCommand(container, prompter),
		newHistoryExportCommand(container),
		newHistoryStatsCommand(container),
		newHistoryRetainCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var (
		limit int
		kind  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.HistoryFilter{Limit: limit}
			if kind != "" {
				k, err := domain.ParseQueryKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			return listHistoryEntries(cmd, container, filter)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only show entries of this kind")
	return cmd
}

// newHistorySearchCommand creates the 'history search' subcommand
func newHistorySearchCommand(container *app.Container) *cobra.Command {
	var (
		query       string
		searchLimit int
	)

	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search history code and errors for a keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" && len(args) > 0 {
				query = args[0]
			}
			if query == "" {
				return errors.New(ErrQueryRequired)
			}
			return listHistoryEntries(cmd, container, domain.HistoryFilter{Limit: searchLimit, Search: query})
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Search keyword")
	cmd.Flags().IntVar(&searchLimit, "limit", DefaultHistorySearchLimit, "Limit search results")
	return cmd
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(container *app.Container, prompter ports.ConfirmationPrompter) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if prompter == nil || !prompter.Enabled() {
					return errors.New("refusing to clear history without --yes")
				}
				ok, err := prompter.Confirm("Delete all history entries?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), MsgClearCancelled)
					return nil
				}
			}
			if err := clearHistory(cmd.Context(), container); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgHistoryCleared)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export history to JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportHistory(cmd.Context(), container, args[0])
		},
	}
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate, kinds and most frequent queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryStats(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// newHistoryRetainCommand creates the 'history retain' subcommand
func newHistoryRetainCommand(container *app.Container) *cobra.Command {
	var retainDays int

	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Prune history older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				retainDays = container.Config.GetHistoryRetentionDays()
			}
			if retainDays <= 0 {
				return errors.New(ErrInvalidRetainDays)
			}
			return pruneHistory(cmd.Context(), cmd.OutOrStdout(), container, retainDays)
		},
	}

	cmd.Flags().IntVar(&retainDays, "days", domain.DefaultHistoryRetainDays, "Days to retain history (default from config)")
	return cmd
}

func historyStore(container *app.Container) (ports.HistoryRepository, error) {
	if container.HistoryStore == nil {
		return nil, errors.New(ErrHistoryStoreUnavailable)
	}
	return container.HistoryStore, nil
}

// listHistoryEntries renders entries matching filter
func listHistoryEntries(cmd *cobra.Command, container *app.Container, filter domain.HistoryFilter) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}

	records, err := store.Records(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), MsgNoHistoryRecorded)
		return nil
	}

	return newRenderer(cmd, container).History(records, time.Now())
}

// clearHistory deletes every history entry
func clearHistory(ctx context.Context, container *app.Container) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// exportHistory exports history to a JSONL file
func exportHistory(ctx context.Context, container *app.Container, path string) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	if err := store.ExportJSON(ctx, path); err != nil {
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}
	return nil
}

// showHistoryStats displays success rate, kind breakdown and top queries
func showHistoryStats(ctx context.Context, out io.Writer, container *app.Container) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}

	records, err := store.Records(ctx, domain.HistoryFilter{})
	if err != nil {
		return fmt.Errorf("failed to retrieve history for analysis: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	stats := helpers.AnalyzeHistory(records, TopQueriesShown)
	fmt.Fprintf(out, "Entries analyzed: %d\nSuccess rate: %.1f%%\n", stats.Total, stats.SuccessRate())

	fmt.Fprintln(out, "By kind:")
	for _, ks := range stats.Kinds {
		fmt.Fprintf(out, "  %s: %d (%d failed, avg %.0f ms)\n", ks.Kind, ks.Count, ks.Failed, ks.AverageMS)
	}

	fmt.Fprintln(out, "Top queries:")
	for _, q := range stats.TopQueries {
		fmt.Fprintf(out, "  %s (%d)\n", helpers.Truncate(q.Code, 60), q.Count)
	}
	return nil
}

// pruneHistory removes entries older than days
func pruneHistory(ctx context.Context, out io.Writer, container *app.Container, days int) error {
	store, err := historyStore(container)
	if err != nil {
		return err
	}
	removed, err := store.PruneOlderThan(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to prune old history: %w", err)
	}
	fmt.Fprintf(out, "Removed %d entries; retained last %d days of history.\n", removed, days)
	return nil
}
