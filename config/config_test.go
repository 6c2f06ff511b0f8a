package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(3480), cfg.Runtime.LamportsPerByteYear)
	assert.Equal(t, DefaultProgramID, cfg.Runtime.ProgramID)
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.yaml")
	body := `
log_level: debug
server:
  listen_addr: ":7100"
  quic_max_idle_timeout: 90s
database:
  in_memory: true
  path: ""
runtime:
  faucet_enabled: true
  faucet_max_amount: 5000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":7100", cfg.Server.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.Server.QUICMaxIdleTimeout)
	assert.True(t, cfg.Database.InMemory)
	assert.True(t, cfg.Runtime.FaucetEnabled)
	assert.Equal(t, uint64(5000), cfg.Runtime.FaucetMaxAmount)
	// 未出现在文件里的字段保持默认值
	assert.Equal(t, 256, cfg.Runtime.LockStripes)
	assert.Equal(t, DefaultProgramID, cfg.Runtime.ProgramID)
}

func TestLoadFromFileUsesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime:\n  lock_stripes: 0\n"), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_stripes")
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
