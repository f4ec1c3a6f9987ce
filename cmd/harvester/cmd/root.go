// Package cmd implements the harvester CLI.
package cmd

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/racebase/harvester/pkg/logging"
	"github.com/racebase/harvester/pkg/match"
	"github.com/racebase/harvester/pkg/reconcile"
	"github.com/racebase/harvester/pkg/schedule"
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Federation calendar harvester",
	Long: `Harvester keeps the internal event catalog aligned with the official
federation calendar. It scrapes calendar slices region by region, matches
scraped competitions against catalog entities and queues confidence-scored
change proposals for review. Catalog entities are never written directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Configure(viper.GetString("log_level"), viper.GetString("log_format"))
	},
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		return err
	}
	return nil
}

func init() {
	// A missing .env file is fine; explicit environment wins anyway.
	_ = godotenv.Load()

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default harvester.yaml in the working directory)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "auto", "log format (auto, console, json)")
	flags.String("progress-file", "harvester-progress.yaml", "cycle progress file")
	flags.String("database-url", "", "catalog database URL")

	for key, name := range map[string]string{
		"config":        "config",
		"log_level":     "log-level",
		"log_format":    "log-format",
		"progress_file": "progress-file",
		"database_url":  "database-url",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetDefault("source_base_url", "")
	viper.SetDefault("regions", []string{
		"ARA", "BFC", "BRE", "CEN", "G-E", "H-F", "IDF", "NOR", "N-A", "OCC", "P-L", "PCA",
		"GUA", "MAR", "GUY", "REU", "MAY", "N-C", "P-F",
	})
	viper.SetDefault("levels", []string{"Départemental", "Régional", "National"})
	viper.SetDefault("window_months", 6)
	viper.SetDefault("regions_per_run", 1)
	viper.SetDefault("months_per_run", 2)
	viper.SetDefault("cooldown", 14*24*time.Hour)
	viper.SetDefault("human_delay", 2*time.Second)
	viper.SetDefault("similarity_threshold", 0.75)
	viper.SetDefault("confidence_base", 0.95)
	viper.SetDefault("confidence_floor", 0.9)
	viper.SetDefault("date_window", 60*24*time.Hour)
	viper.SetDefault("max_rejected", 3)
	viper.SetDefault("distance_tolerance_pct", 10.0)
	viper.SetDefault("elevation_tolerance_m", 30)
	viper.SetDefault("start_date_tolerance", time.Hour)
}

func initConfig() {
	if cfg := viper.GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.SetConfigName("harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/harvester")
	}

	viper.SetEnvPrefix("HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Debug().Str("file", viper.ConfigFileUsed()).Msg("Loaded config file")
	}
}

func scheduleConfig() schedule.Config {
	return schedule.Config{
		Regions:       viper.GetStringSlice("regions"),
		WindowMonths:  viper.GetInt("window_months"),
		RegionsPerRun: viper.GetInt("regions_per_run"),
		MonthsPerRun:  viper.GetInt("months_per_run"),
		Cooldown:      viper.GetDuration("cooldown"),
	}
}

func matchConfig() match.Config {
	return match.Config{
		Threshold:       viper.GetFloat64("similarity_threshold"),
		ConfidenceBase:  viper.GetFloat64("confidence_base"),
		ConfidenceFloor: viper.GetFloat64("confidence_floor"),
		DateWindow:      viper.GetDuration("date_window"),
		MaxRejected:     viper.GetInt("max_rejected"),
	}
}

func diffConfig() reconcile.Config {
	return reconcile.Config{
		DistanceTolerancePct:     viper.GetFloat64("distance_tolerance_pct"),
		ElevationToleranceMeters: viper.GetInt("elevation_tolerance_m"),
		StartDateTolerance:       viper.GetDuration("start_date_tolerance"),
	}
}
