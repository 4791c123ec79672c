package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal/config"
	"github.com/zombodb/zdbkit/internal/storage/local"
	"github.com/zombodb/zdbkit/internal/storage/s3"
)

// retentionCmd represents the retention command
var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Manage dump retention policies",
	Long:  `Manage dump retention policies for cleaning up old index dumps.`,
}

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old dumps based on retention policy",
	Long: `Clean up old dumps based on the configured retention policy.
This command will remove dumps that exceed the retention limits defined
in the configuration file (retention_period and/or retention_count).`,
	Run: func(cmd *cobra.Command, _ []string) {
		logger := log.Logger.With().Str("caller", "retention_cleanup_cmd").Logger()

		s3Configured := config.Loaded != nil && config.Loaded.Storage != nil && config.Loaded.Storage.S3 != nil
		localConfigured := config.Loaded != nil && config.Loaded.Storage != nil && config.Loaded.Storage.Local != nil

		backends := make([]string, 0, 2)
		if s3Configured {
			backends = append(backends, "s3")
		}
		if localConfigured {
			backends = append(backends, "local")
		}

		if len(backends) == 0 {
			logger.Fatal().Msg("no storage backends configured - cannot perform retention cleanup")
		}

		logger.Info().
			Strs("storage_backends", backends).
			Msg("starting manual retention cleanup")

		successCount := 0

		if s3Configured {
			if err := s3.CleanupRetention(cmd.Context()); err != nil {
				logger.Error().Err(err).
					Str("bucket", config.Loaded.Storage.S3.Bucket).
					Msg("s3 retention cleanup failed")
			} else {
				logger.Info().
					Str("bucket", config.Loaded.Storage.S3.Bucket).
					Msg("s3 retention cleanup completed successfully")
				successCount++
			}
		}

		if localConfigured {
			if err := local.CleanupRetention(cmd.Context()); err != nil {
				logger.Error().Err(err).
					Str("directory", config.Loaded.Storage.Local.Directory).
					Msg("local retention cleanup failed")
			} else {
				logger.Info().
					Str("directory", config.Loaded.Storage.Local.Directory).
					Msg("local retention cleanup completed successfully")
				successCount++
			}
		}

		logger.Info().
			Int("successful_backends", successCount).
			Int("total_backends", len(backends)).
			Msg("retention cleanup operation finished")
	},
}

func init() {
	retentionCmd.AddCommand(cleanupCmd)
	RootCmd.AddCommand(retentionCmd)
}
