package handlers

import (
	"net/http"

	"vault/types"
)

// HandleVaultState 查询 owner 的 vault
func (hm *HandlerManager) HandleVaultState(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleVaultState")
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	owner, err := types.ParseAddress(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner: "+err.Error())
		return
	}

	info, err := hm.controller.Inspect(hm.executor, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, VaultStateResponse{Info: *info, BalanceSOL: types.FormatSOL(info.Balance)})
}
