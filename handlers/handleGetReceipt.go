package handlers

import (
	"errors"
	"net/http"

	"vault/vm"
)

// HandleGetReceipt 按指令 ID 查询回执
func (hm *HandlerManager) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleGetReceipt")
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	rc, err := hm.executor.Receipt(id)
	if errors.Is(err, vm.ErrReceiptNotFound) {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rc))
}
