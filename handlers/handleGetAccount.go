package handlers

import (
	"net/http"

	"vault/types"
)

// HandleGetAccount 处理获取账户信息的请求
func (hm *HandlerManager) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleGetAccount")
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	addr, err := types.ParseAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address: "+err.Error())
		return
	}

	acc, err := hm.executor.Account(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := AccountResponse{Address: addr, Owner: types.SystemProgramID, SOL: "0"}
	if acc != nil {
		resp.Exists = true
		resp.Lamports = acc.Lamports
		resp.SOL = types.FormatSOL(acc.Lamports)
		resp.Owner = acc.Owner
		resp.DataLen = len(acc.Data)
	}
	if minBal, err := hm.executor.Rent.MinimumBalance(resp.DataLen); err == nil {
		resp.RentExempt = minBal
	}
	writeJSON(w, http.StatusOK, resp)
}
