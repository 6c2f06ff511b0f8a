package handlers

import (
	"net/http"
)

// 处理状态查询
func (hm *HandlerManager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleStatus")

	accounts, err := hm.executor.CountAccounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count accounts: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:       "ok",
		ProgramID:    hm.executor.ProgramID,
		LatestSlot:   hm.executor.LatestSlot(),
		Accounts:     accounts,
		Kinds:        hm.executor.Reg.List(),
		Faucet:       hm.runtime.FaucetEnabled,
		Uptime:       hm.Stats.Uptime().String(),
		APICalls:     hm.Stats.GetAPICallStats(),
		Instructions: hm.Stats.GetInstructionStats(),
		Latency:      hm.Stats.Latency.Snapshot(),
	})
}
