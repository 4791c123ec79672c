package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <index>",
	Short: "Dump an Elasticsearch index",
	Long: `Dump an Elasticsearch index once and now.

Every document of the index is exported and written to the configured
storage backends, compressed when a compress block is configured.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requireElasticsearch()

		if err := internal.Dump(cmd.Context(), args[0]); err != nil {
			log.Fatal().Err(err).Str("index", args[0]).Msg("dump failed")
		}
	},
}

func init() {
	RootCmd.AddCommand(dumpCmd)
}
