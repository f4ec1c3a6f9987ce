package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/racebase/harvester/pkg/schedule"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted cycle progress",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store := schedule.NewStore(viper.GetString("progress_file"))
	progress, err := store.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Progress file:     %s\n", store.Path())
	fmt.Fprintf(out, "Current cursor:    %s\n", cursorString(progress))
	fmt.Fprintf(out, "Units completed:   %d\n", progress.Counters.UnitsCompleted)
	fmt.Fprintf(out, "Records scraped:   %d\n", progress.Counters.RecordsScraped)
	fmt.Fprintf(out, "Proposals created: %d (suppressed %d)\n",
		progress.Counters.ProposalsCreated, progress.Counters.ProposalsSuppressed)

	if progress.LastFullCycleCompletedAt != nil {
		fmt.Fprintf(out, "Cycle completed:   %s\n", progress.LastFullCycleCompletedAt.Format(time.RFC3339))
	}

	if len(progress.Completed) > 0 {
		fmt.Fprintln(out, "Completed regions:")
		regions := make([]string, 0, len(progress.Completed))
		for region := range progress.Completed {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			months := append([]string(nil), progress.Completed[region]...)
			sort.Strings(months)
			fmt.Fprintf(out, "  %-4s %v\n", region, months)
		}
	}
	return nil
}

func cursorString(p *schedule.Progress) string {
	if p.CurrentRegion == "" {
		return "(fresh cycle)"
	}
	return p.CurrentRegion + " " + p.CurrentMonth
}
