package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vault/types"
)

// HandleFaucet 开发环境水龙头
func (hm *HandlerManager) HandleFaucet(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleFaucet")
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !hm.runtime.FaucetEnabled {
		writeError(w, http.StatusForbidden, "faucet disabled")
		return
	}

	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	to, err := types.ParseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if amount == 0 || amount > hm.runtime.FaucetMaxAmount {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("amount must be in (0, %d] lamports", hm.runtime.FaucetMaxAmount))
		return
	}

	rc := hm.executor.Airdrop(to, amount)
	hm.Stats.RecordInstruction(rc.Status)
	writeJSON(w, http.StatusOK, toReceiptResponse(rc))
}
