package schedule

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal"
	"github.com/zombodb/zdbkit/internal/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dump schedules",
	Long:  `Run the dump schedules defined in the configuration file.`,
	Run: func(cmd *cobra.Command, _ []string) {
		logger := log.Logger.With().Str("caller", "schedule_runner").Logger()

		if config.Loaded == nil || config.Loaded.Elasticsearch == nil {
			logger.Fatal().Msg("elasticsearch is not configured - cannot start scheduler")
		}

		if len(config.Loaded.Dumps) == 0 {
			logger.Fatal().Msg("no schedules configured - cannot start scheduler")
		}

		logger.Info().
			Int("dump_schedules", len(config.Loaded.Dumps)).
			Msg("initializing scheduler")

		c := cron.New()

		for _, schedule := range config.Loaded.Dumps {
			if _, err := c.AddFunc(schedule.Cron, func() {
				if err := internal.Dump(cmd.Context(), schedule.Index); err != nil {
					log.Error().Err(err).
						Str("cron_expression", schedule.Cron).
						Str("index", schedule.Index).
						Msg("scheduled dump failed")
				}
			}); err != nil {
				logger.Fatal().Err(err).
					Str("cron_expression", schedule.Cron).
					Str("index", schedule.Index).
					Msg("failed to register dump schedule - invalid cron expression")
			}

			logger.Info().
				Str("cron_expression", schedule.Cron).
				Str("index", schedule.Index).
				Msg("schedule registered successfully")
		}

		logger.Info().Msg("starting scheduler - waiting for scheduled jobs")
		c.Run()
	},
}

func init() {
	scheduleCmd.AddCommand(runCmd)
}
