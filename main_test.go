package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"startup-hub/config"
)

func TestRunStopsOnUnknownDatabaseDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "oracle"

	err := run(cfg, zerolog.Nop())
	require.Error(t, err)
}
