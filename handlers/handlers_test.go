package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vault/config"
	"vault/db"
	"vault/logs"
	"vault/types"
	"vault/vault"
	"vault/vm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logs.SetOutput(io.Discard)
}

type testNode struct {
	hm        *HandlerManager
	mux       *http.ServeMux
	programID types.Address
}

func newTestNode(t *testing.T, faucet bool) *testNode {
	t.Helper()
	store, err := db.NewInMemoryManager(nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	cfg := config.DefaultConfig()
	cfg.Runtime.FaucetEnabled = faucet

	programID := types.MustParseAddress(cfg.Runtime.ProgramID)
	ctl := vault.NewController(types.NewDeriver(programID, 64))
	reg := vm.NewHandlerRegistry()
	require.NoError(t, vault.Register(reg, ctl))
	x, err := vm.NewExecutor(store, reg, cfg.Runtime, nil)
	require.NoError(t, err)

	hm := NewHandlerManager(x, ctl, cfg.Runtime, "handlers-test", nil)
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)
	return &testNode{hm: hm, mux: mux, programID: programID}
}

func (n *testNode) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	n.mux.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (n *testNode) submit(t *testing.T, kp *types.Keypair, kind string, amount, nonce uint64) ReceiptResponse {
	t.Helper()
	ix := &types.Instruction{Program: n.programID, Kind: kind, Amount: amount, Nonce: nonce}
	require.NoError(t, ix.Sign(kp))
	rec := n.do(t, http.MethodPost, "/vault/submit", ix)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ReceiptResponse
	decode(t, rec, &resp)
	return resp
}

func TestVaultFlowOverHTTP(t *testing.T) {
	n := newTestNode(t, true)
	kp, err := types.GenerateKeypair()
	require.NoError(t, err)

	rec := n.do(t, http.MethodPost, "/faucet", FaucetRequest{Address: kp.Address().String(), Amount: "2sol"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, vm.StatusSucceed, n.submit(t, kp, vault.KindInitialize, 0, 1).Status)
	dup := n.submit(t, kp, vault.KindInitialize, 0, 9)
	assert.Equal(t, vm.StatusFailed, dup.Status)
	assert.Zero(t, dup.ErrorCode)
	assert.Equal(t, vm.KindAccountAlreadyExists, dup.ErrorName)
	assert.Equal(t, vm.KindAccountAlreadyExists, dup.ErrorKind)
	assert.Equal(t, vm.StatusSucceed, n.submit(t, kp, vault.KindDeposit, 100, 2).Status)
	assert.Equal(t, vm.StatusSucceed, n.submit(t, kp, vault.KindWithdraw, 40, 3).Status)

	failed := n.submit(t, kp, vault.KindWithdraw, 1000, 4)
	assert.Equal(t, vm.StatusFailed, failed.Status)
	assert.Equal(t, vault.InsufficientBalance.Code(), failed.ErrorCode)
	assert.Equal(t, "InsufficientBalance", failed.ErrorName)
	assert.Equal(t, vault.InsufficientBalance.Message(), failed.Message)

	rec = n.do(t, http.MethodGet, "/vault/state?owner="+kp.Address().String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st VaultStateResponse
	decode(t, rec, &st)
	assert.True(t, st.Initialized)
	assert.Equal(t, uint64(60), st.Balance)
	assert.Equal(t, uint64(60), st.EscrowHeld)
	assert.Equal(t, "0.00000006", st.BalanceSOL)

	rec = n.do(t, http.MethodGet, "/account?address="+st.Escrow.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc AccountResponse
	decode(t, rec, &acc)
	assert.True(t, acc.Exists)
	assert.Equal(t, uint64(60), acc.Lamports)
	assert.Equal(t, types.SystemProgramID, acc.Owner)

	rec = n.do(t, http.MethodGet, "/receipt?id="+failed.InstructionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored ReceiptResponse
	decode(t, rec, &stored)
	assert.Equal(t, vm.StatusFailed, stored.Status)
	assert.Equal(t, "InsufficientBalance", stored.ErrorName)

	rec = n.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	decode(t, rec, &status)
	assert.Equal(t, uint64(2), status.Latency[vault.KindWithdraw].Count)
	assert.Equal(t, uint64(2), status.Instructions[vm.StatusFailed])
}

func TestSubmitMalformed(t *testing.T) {
	n := newTestNode(t, false)

	rec := httptest.NewRecorder()
	n.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vault/submit", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = n.do(t, http.MethodPost, "/vault/submit", map[string]string{"kind": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = n.do(t, http.MethodGet, "/vault/submit", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// 未签名的指令走到执行器，返回 FAILED 回执
	unsigned := &types.Instruction{Program: n.programID, Kind: vault.KindDeposit, Amount: 1}
	rec = n.do(t, http.MethodPost, "/vault/submit", unsigned)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReceiptResponse
	decode(t, rec, &resp)
	assert.Equal(t, vm.StatusFailed, resp.Status)
	assert.Contains(t, resp.Error, vm.ErrMissingSignature.Error())
}

func TestFaucetRules(t *testing.T) {
	addr := types.SystemProgramID.String()

	off := newTestNode(t, false)
	rec := off.do(t, http.MethodPost, "/faucet", FaucetRequest{Address: addr, Amount: "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	on := newTestNode(t, true)
	rec = on.do(t, http.MethodPost, "/faucet", FaucetRequest{Address: addr, Amount: "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = on.do(t, http.MethodPost, "/faucet", FaucetRequest{Address: addr, Amount: "11sol"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = on.do(t, http.MethodPost, "/faucet", FaucetRequest{Address: "bad", Amount: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryValidation(t *testing.T) {
	n := newTestNode(t, false)
	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodGet, "/vault/state?owner=xyz", nil).Code)
	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodGet, "/account", nil).Code)
	assert.Equal(t, http.StatusBadRequest, n.do(t, http.MethodGet, "/receipt", nil).Code)
	assert.Equal(t, http.StatusNotFound, n.do(t, http.MethodGet, "/receipt?id=nope", nil).Code)

	kp, _ := types.GenerateKeypair()
	rec := n.do(t, http.MethodGet, "/vault/state?owner="+kp.Address().String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st VaultStateResponse
	decode(t, rec, &st)
	assert.False(t, st.Initialized)
	assert.False(t, st.State.IsZero())
}

func TestStatusAndLogs(t *testing.T) {
	n := newTestNode(t, false)
	n.hm.Logger.Info("hello from test")

	rec := n.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st StatusResponse
	decode(t, rec, &st)
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, n.programID, st.ProgramID)
	assert.ElementsMatch(t, vault.Kinds(), st.Kinds)
	assert.Equal(t, uint64(1), st.APICalls["HandleStatus"])

	rec = n.do(t, http.MethodGet, "/logs?max_lines=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lr LogsResponse
	decode(t, rec, &lr)
	require.Len(t, lr.Logs, 1)
	assert.Contains(t, lr.Logs[0], "hello from test")
}
