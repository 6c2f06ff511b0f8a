package main

import (
	"os"
	"path/filepath"
	"testing"

	"vault/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsOverridesConfig(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nserver:\n  listen_addr: \":7000\"\n"), 0o644))

	_, cfg, err := parseFlags([]string{"--config", path, "--in-memory", "--faucet", "--listen", ":7100"})
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Server.ListenAddr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Database.InMemory)
	assert.True(t, cfg.Runtime.FaucetEnabled)
}

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	_, cfg, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.ListenAddr, cfg.Server.ListenAddr)
	assert.False(t, cfg.Runtime.FaucetEnabled)

	_, _, err = parseFlags([]string{"--bogus"})
	assert.Error(t, err)
}
