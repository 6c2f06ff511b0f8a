package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"vault/config"
	"vault/db"
	"vault/handlers"
	"vault/logs"
	"vault/sender"
	"vault/types"
	"vault/vault"
	"vault/vm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logs.SetOutput(io.Discard)
}

func startNode(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")

	store, err := db.NewInMemoryManager(nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	cfg := config.DefaultConfig()
	cfg.Runtime.FaucetEnabled = true
	programID := types.MustParseAddress(cfg.Runtime.ProgramID)
	ctl := vault.NewController(types.NewDeriver(programID, 64))
	reg := vm.NewHandlerRegistry()
	require.NoError(t, vault.Register(reg, ctl))
	x, err := vm.NewExecutor(store, reg, cfg.Runtime, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handlers.NewHandlerManager(x, ctl, cfg.Runtime, "vaultctl-test", nil).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	prev := newClient
	newClient = func(config.ClientConfig) *sender.Client {
		return sender.NewClientWithHTTP(srv.URL, srv.Client())
	}
	t.Cleanup(func() { newClient = prev })
}

func TestKeygenAndAddress(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	key := filepath.Join(t.TempDir(), "keys", "owner.key")

	var out bytes.Buffer
	require.NoError(t, run([]string{"--key", key, "keygen"}, &out))
	assert.Contains(t, out.String(), "address: ")

	// 不覆盖已有密钥
	assert.Error(t, run([]string{"--key", key, "keygen"}, &out))

	out.Reset()
	require.NoError(t, run([]string{"--key", key, "address"}, &out))
	assert.Contains(t, out.String(), "escrow: ")
	assert.Contains(t, out.String(), "state:  ")
}

func TestVaultCommands(t *testing.T) {
	startNode(t)
	key := filepath.Join(t.TempDir(), "owner.key")
	var out bytes.Buffer
	require.NoError(t, run([]string{"-k", key, "keygen"}, &out))

	steps := [][]string{
		{"airdrop", "1sol"},
		{"init"},
		{"deposit", "0.25sol"},
		{"withdraw", "1000"},
	}
	for _, step := range steps {
		out.Reset()
		require.NoError(t, run(append([]string{"-k", key}, step...), &out), step)
	}

	out.Reset()
	require.NoError(t, run([]string{"-k", key, "state"}, &out))
	var st handlers.VaultStateResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, uint64(250_000_000-1000), st.Balance)

	// 非空 vault 关闭失败，错误文案来自错误码
	err := run([]string{"-k", key, "close"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), vault.VaultNotEmpty.Message())

	err = run([]string{"-k", key, "init"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), vm.KindAccountAlreadyExists)

	err = run([]string{"-k", key, "withdraw", "0"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidAmount")

	out.Reset()
	require.NoError(t, run([]string{"status"}, &out))
	assert.Contains(t, out.String(), "latest_slot")
}

func TestUsageErrors(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "")
	var out bytes.Buffer
	assert.Error(t, run(nil, &out))
	assert.Contains(t, out.String(), "Commands:")
	assert.Error(t, run([]string{"frobnicate"}, &out))
	assert.Error(t, run([]string{"deposit"}, &out))
	assert.NoError(t, run([]string{"--help"}, &out))
}
