package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvebulk/pvebulk/pkg/telemetry"
)

func TestSetupLoggingKeepsConfiguredLevels(t *testing.T) {
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		log.Logger = zerolog.New(os.Stderr)
	})

	setupLogging("")
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())
	assert.Equal(t, zerolog.InfoLevel, log.Logger.GetLevel())

	path := filepath.Join(t.TempDir(), "pvebulk.log")
	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	zl := logger.Zerolog()
	zl.Debug().Int("id", 100).Msg("dispatched")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"dispatched"`)

	setupLogging("warn")
	assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
}
