package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zombodb/zdbkit/internal/pgconfig"
)

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup [version]",
	Short: "Append the ZomboDB settings to a PostgreSQL configuration",
	Long: `Append the ZomboDB settings to a PostgreSQL configuration.

The settings block is appended verbatim to
/etc/postgresql/{version}/main/postgresql.conf. The file is not
inspected first: running setup twice appends the block twice. The
version is substituted as given, without validation.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		version := ""
		if len(args) > 0 {
			version = args[0]
		}

		path := pgconfig.ConfPath(version)
		if err := pgconfig.AppendFile(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to append settings")
		}

		log.Info().Str("path", path).Msg("settings appended")
	},
}

func init() {
	RootCmd.AddCommand(setupCmd)
}
