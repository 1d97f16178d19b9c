package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/yoloplan/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded solve runs",
		Long: `Inspect the runs recorded by 'yoloplan solve --db'.

Each run keeps its status, counters, seed and plan, together with the
events published while it ran.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "yoloplan.db", "run history database")

	cmd.AddCommand(newHistoryListCommand(&dbPath))
	cmd.AddCommand(newHistoryShowCommand(&dbPath))
	cmd.AddCommand(newHistoryDeleteCommand(&dbPath))

	return cmd
}

func openHistory(cmd *cobra.Command, dbPath string) (*stores.SQLiteStore, error) {
	return stores.Open(cmd.Context(), dbPath)
}

func newHistoryListCommand(dbPath *string) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Example: `  yoloplan history list --db history.db
  yoloplan history list --limit 5 --offset 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != "text" {
				return writeStructured(w, outputFormat, runs)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROBLEM\tSTATUS\tTRIES\tLENGTH\tSEED\tSTARTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.ID, run.Problem, run.Status, run.Tries, run.PlanLength, run.Seed,
					run.StartedAt.Local().Format(time.DateTime), run.Duration().Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

type runDetails struct {
	*stores.SolveRun
	Events []*stores.RunEvent `json:"events"`
}

func newHistoryShowCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			events, err := store.GetEvents(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputFormat != "text" {
				return writeStructured(w, outputFormat, runDetails{SolveRun: run, Events: events})
			}

			fmt.Fprintf(w, "Run:        %s\n", run.ID)
			fmt.Fprintf(w, "Problem:    %s\n", run.Problem)
			fmt.Fprintf(w, "Engine:     %s\n", run.Engine)
			fmt.Fprintf(w, "Status:     %s\n", run.Status)
			fmt.Fprintf(w, "Tries:      %d (%d restarts, %d backtracks)\n", run.Tries, run.Restarts, run.Backtracks)
			fmt.Fprintf(w, "Seed:       %d\n", run.Seed)
			fmt.Fprintf(w, "Started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(w, "Duration:   %s\n", run.Duration())
			if run.Error != nil {
				fmt.Fprintf(w, "Error:      %s\n", *run.Error)
			}
			if run.Plan != "" {
				fmt.Fprintf(w, "Plan (%d actions):\n", run.PlanLength)
				fmt.Fprintf(w, "%s\n", indent(run.Plan))
			}
			if len(events) > 0 {
				fmt.Fprintln(w, "Events:")
				for _, e := range events {
					fmt.Fprintf(w, "  %s  %-7s %-16s %s\n",
						e.Timestamp.Local().Format(time.TimeOnly), e.Level, e.Type, e.Message)
				}
			}
			return nil
		},
	}

	return cmd
}

func newHistoryDeleteCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}

	return cmd
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
