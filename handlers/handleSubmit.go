package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"vault/types"
)

// HandleSubmit 提交一条已签名指令，程序错误以 FAILED 回执 + 200 返回
func (hm *HandlerManager) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleSubmit")
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var ix types.Instruction
	if err := json.NewDecoder(r.Body).Decode(&ix); err != nil {
		writeError(w, http.StatusBadRequest, "invalid instruction: "+err.Error())
		return
	}
	if ix.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	start := time.Now()
	rc := hm.executor.Execute(&ix)
	// 只统计已注册的 kind，避免任意字符串撑大统计表
	if _, ok := hm.executor.Reg.Get(ix.Kind); ok {
		hm.Stats.Latency.Since(ix.Kind, start)
	}
	hm.Stats.RecordInstruction(rc.Status)
	if !rc.Succeeded() {
		hm.Logger.Info("[Handler] %s from %s failed: %s", ix.Kind, ix.Signer.Short(), rc.Message)
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rc))
}
