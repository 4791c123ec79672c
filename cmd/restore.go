package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal"
	"github.com/zombodb/zdbkit/internal/config"
)

var (
	restoreDumpID  string
	restoreToIndex string
	restoreList    bool
	restoreLatest  bool
	restoreStorage string
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore an Elasticsearch index from a dump",
	Long: `Restore an Elasticsearch index from a dump stored in S3 or local storage.

The restore command can list available dumps and replay a selected dump
into an index. Without flags it restores the most recent dump into the
index it was taken from.

Examples:
  # List available dumps from all configured storage backends
  zdbkit restore --list

  # Restore the latest dump into the index it was taken from
  zdbkit restore --latest

  # Restore a specific dump by timestamp/filename
  zdbkit restore --dump 2026-01-15T10:30:00

  # Restore into a different index
  zdbkit restore --latest --to-index products_restored

  # Restore from a specific storage backend only
  zdbkit restore --list --storage s3
  zdbkit restore --latest --storage local`,
	Run: func(cmd *cobra.Command, _ []string) {
		logger := log.Logger.With().Str("caller", "restore_cmd").Logger()

		if config.Loaded == nil {
			logger.Fatal().Msg("no configuration file found - create /etc/zdbkit/config.hcl or pass --config")
		}

		entries, err := internal.ListAllDumps(cmd.Context(), restoreStorage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list dumps")
		}

		if restoreList {
			listAvailableDumps(entries)
			return
		}

		requireElasticsearch()

		var selected *internal.DumpEntry
		if restoreDumpID != "" {
			selected = internal.FindDumpByID(entries, restoreDumpID)
			if selected == nil {
				logger.Fatal().Str("dump_id", restoreDumpID).Msg("dump not found")
			}
			logger.Info().Str("dump", selected.Name).Str("source", selected.Source).Msg("found specified dump")
		} else {
			if len(entries) == 0 {
				logger.Fatal().Msg("no dumps found")
			}
			selected = &entries[0]
			logger.Info().Str("dump", selected.Name).Str("source", selected.Source).Msg("selected latest dump")
		}

		targetIndex := restoreToIndex
		if targetIndex == "" {
			targetIndex = selected.Index
		}

		docs, err := internal.Restore(cmd.Context(), selected, targetIndex)
		if err != nil {
			logger.Fatal().Err(err).Msg("restore operation failed")
		}

		logger.Info().
			Str("dump", selected.Name).
			Str("index", targetIndex).
			Int64("docs", docs).
			Msg("restore operation completed successfully")
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreDumpID, "dump", "", "specific dump to restore (timestamp or filename)")
	restoreCmd.Flags().BoolVar(&restoreList, "list", false, "list available dumps without restoring")
	restoreCmd.Flags().BoolVar(&restoreLatest, "latest", false, "restore the most recent dump")
	restoreCmd.Flags().StringVar(&restoreToIndex, "to-index", "", "target index name (defaults to the index the dump was taken from)")
	restoreCmd.Flags().StringVar(&restoreStorage, "storage", "", "storage backend to use: 's3' or 'local' (defaults to all configured)")

	restoreCmd.MarkFlagsMutuallyExclusive("dump", "latest")
	restoreCmd.MarkFlagsMutuallyExclusive("dump", "list")

	RootCmd.AddCommand(restoreCmd)
}

func listAvailableDumps(entries []internal.DumpEntry) {
	fmt.Fprintln(os.Stdout, "Available dumps:")
	fmt.Fprintln(os.Stdout, "================")

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "No dumps found.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-30s %-15s %-10s %-15s %s\n", "DUMP NAME", "INDEX", "SOURCE", "SIZE", "CREATED")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, entry := range entries {
		fmt.Fprintf(os.Stdout, "%-30s %-15s %-10s %-15s %s\n",
			entry.Name, entry.Index, entry.Source, formatSize(entry.Size), entry.Timestamp.Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(os.Stdout, "\nTotal: %d dumps\n", len(entries))
}

// formatSize formats a size in bytes to a human-readable string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
