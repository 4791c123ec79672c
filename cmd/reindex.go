package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal"
)

var reindexIndexName string

// reindexCmd represents the reindex command
var reindexCmd = &cobra.Command{
	Use:   "reindex <table>",
	Short: "Rebuild the Elasticsearch index for a table",
	Long: `Rebuild the Elasticsearch index for a table from scratch.

The index is deleted, recreated from the default ZomboDB mapping and
filled by streaming every row of the table through the bulk pipeline.
Documents are stamped with frozen transaction metadata so they are
visible to every snapshot. A failed build deletes the half-built index
again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireElasticsearch()
		requirePostgres()

		index := reindexIndexName
		if index == "" {
			index = internal.IndexNameForTable(args[0])
		}

		if _, err := internal.Reindex(cmd.Context(), args[0], index); err != nil {
			log.Fatal().Err(err).Str("table", args[0]).Str("index", index).Msg("reindex failed")
		}
	},
}

func init() {
	reindexCmd.Flags().StringVar(&reindexIndexName, "index", "", "target index name (default zdb_<table>)")
	RootCmd.AddCommand(reindexCmd)
}
