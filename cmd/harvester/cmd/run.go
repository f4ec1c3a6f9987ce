package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	harvester "github.com/racebase/harvester"
	"github.com/racebase/harvester/internal/sources/ffa"
	"github.com/racebase/harvester/internal/store/postgres"
	"github.com/racebase/harvester/pkg/errors"
	"github.com/racebase/harvester/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the next batch of harvesting work units",
	Long: `Run picks up the persisted cycle progress, harvests the next batch of
region-month work units and queues change proposals. Progress is saved
after every unit, so an interrupted run resumes where it stopped.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "plan the next work units without harvesting")
	_ = viper.BindPFlag("dry_run", runCmd.Flags().Lookup("dry-run"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		return &errors.ConfigError{Component: "database", Message: "database_url is required"}
	}

	store, err := postgres.Open(databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	var sourceOpts []ffa.Option
	if base := viper.GetString("source_base_url"); base != "" {
		sourceOpts = append(sourceOpts, ffa.WithBaseURL(base))
	}

	h, err := harvester.New(
		harvester.WithSource(ffa.New(sourceOpts...)),
		harvester.WithCatalog(store),
		harvester.WithProgressFile(viper.GetString("progress_file")),
		harvester.WithScheduleConfig(scheduleConfig()),
		harvester.WithMatchConfig(matchConfig()),
		harvester.WithDiffConfig(diffConfig()),
		harvester.WithLevels(viper.GetStringSlice("levels")...),
		harvester.WithDelay(viper.GetDuration("human_delay")),
	)
	if err != nil {
		return err
	}

	if viper.GetBool("dry_run") {
		return printPlan(h)
	}

	summary, err := h.Run(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrCooldown) {
			logging.Info().Err(err).Msg("Cycle cooldown active, nothing to do")
			return nil
		}
		return err
	}

	logging.Info().
		Int("units", summary.Units).
		Int("records", summary.Records).
		Int("partialDetails", summary.PartialDetails).
		Int("proposalsCreated", summary.ProposalsCreated).
		Int("proposalsSuppressed", summary.ProposalsSuppressed).
		Int("errorsSkipped", summary.ErrorsSkipped).
		Msg("Run finished")
	return nil
}

// printPlan reports the persisted cursor without harvesting anything.
func printPlan(h harvester.Harvester) error {
	progress, err := h.Status()
	if err != nil {
		return err
	}
	logging.Info().
		Str("currentRegion", progress.CurrentRegion).
		Str("currentMonth", progress.CurrentMonth).
		Int("unitsCompleted", progress.Counters.UnitsCompleted).
		Msg("Next work starts at the persisted cursor")
	return nil
}
