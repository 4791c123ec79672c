package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal/config"
)

var configFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "zdbkit",
	Short: "Manage ZomboDB-backed Elasticsearch indexes",
	Long: `Manage ZomboDB-backed Elasticsearch indexes.

zdbkit prepares PostgreSQL servers for the ZomboDB extension, rebuilds
Elasticsearch indexes from table contents and dumps indexes to local
filesystem or S3 for later restore.

example:
	"zdbkit setup 16" to append the ZomboDB settings to a PostgreSQL 16 configuration
	"zdbkit reindex products" to rebuild the products index from the table
	"zdbkit dump zdb_products" to dump the index to the configured storage now
	"zdbkit schedule run" to run the dump schedules defined in the configuration file
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// requireElasticsearch aborts commands that cannot run without a
// configured Elasticsearch cluster. Only `setup` works configless.
func requireElasticsearch() {
	if config.Loaded == nil || config.Loaded.Elasticsearch == nil {
		log.Fatal().Msg("elasticsearch is not configured - create /etc/zdbkit/config.hcl or pass --config")
	}
}

// requirePostgres aborts commands that need a PostgreSQL connection.
func requirePostgres() {
	if config.Loaded == nil || config.Loaded.Postgres == nil {
		log.Fatal().Msg("postgres is not configured - create /etc/zdbkit/config.hcl or pass --config")
	}
}

func init() {
	cobra.OnInitialize(func() {
		if configFile != "" {
			if err := config.LoadConfig(configFile); err != nil {
				panic(err)
			}
			return
		}

		if err := config.LoadConfigIfPresent(); err != nil {
			panic(err)
		}
	})

	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is /etc/zdbkit/config.hcl)")
}
