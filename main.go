package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zombodb/zdbkit/cmd"

	_ "github.com/zombodb/zdbkit/cmd/schedule"
)

func main() {
	//nolint:reassign // intended usage of zerolog global log
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("caller", "zdbkit").Logger()

	cmd.Execute()
}
