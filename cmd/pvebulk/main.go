package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pvebulk/pvebulk/cmd/pvebulk/commands"
	"github.com/pvebulk/pvebulk/pkg/engine"
	"github.com/pvebulk/pvebulk/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging(os.Getenv("LOG_LEVEL"))

	// The first signal cancels the context: the command in flight is
	// terminated and no further IDs are started.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, Version, Commit, BuildDate)
	if err != nil && !errors.Is(err, engine.ErrItemsFailed) {
		log.Error().Err(err).Msg("command failed")
	}
	stop()
	os.Exit(engine.ExitCode(err))
}

// setupLogging configures the global zerolog logger from LOG_LEVEL. The
// global level stays at trace: loggers built from the configuration filter
// on their own level.
func setupLogging(level string) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(telemetry.ParseLevel(level))
}
