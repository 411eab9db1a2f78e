package main

import (
	"fmt"
	"text/tabwriter"

	"broadcast-orchestrator/internal/platform/config"
	"broadcast-orchestrator/internal/platform/storage"
	"broadcast-orchestrator/internal/schedule"

	"github.com/spf13/cobra"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect stored schedules",
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List pairs of enabled schedules whose windows overlap",
	Long: `Reads every schedule from DATABASE_URL and prints each pair of enabled
schedules that could claim the session at the same minute of the week.
Overlaps are allowed; at run time the first to start holds the session.`,
	RunE: runConflicts,
}

func init() {
	schedulesCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, dialect, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := schedule.NewSQLStore(ctx, db, dialect)
	if err != nil {
		return err
	}
	all, err := store.List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pairs := 0
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i := range all {
		// Compare each pair once: against the schedules after it.
		for _, c := range schedule.CheckConflicts(&all[i], all[i+1:]) {
			if pairs == 0 {
				fmt.Fprintln(w, "SCHEDULE\tWINDOW\tCONFLICTS WITH\tWINDOW")
			}
			pairs++
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", all[i].Name, describe(&all[i]), c.Name, describe(&c))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if pairs == 0 {
		fmt.Fprintln(out, "no overlapping schedules")
	}
	return nil
}

func describe(s *schedule.Schedule) string {
	return fmt.Sprintf("%v %s-%s %s", s.Days, schedule.FormatClock(s.WindowStart), schedule.FormatClock(s.WindowEnd), s.Timezone)
}
