package handlers

import (
	"encoding/json"
	"net/http"

	"vault/config"
	"vault/logs"
	"vault/stats"
	"vault/vault"
	"vault/vm"
)

// HandlerManager 管理所有HTTP处理器及其依赖
type HandlerManager struct {
	executor   *vm.Executor
	controller *vault.Controller
	runtime    config.RuntimeConfig
	address    string // 当前节点地址（日志 ring 的 key）

	// 统计相关字段
	Stats  *stats.Stats
	Logger logs.Logger
}

// NewHandlerManager 创建新的处理器管理器
func NewHandlerManager(
	executor *vm.Executor,
	controller *vault.Controller,
	runtime config.RuntimeConfig,
	address string,
	logger logs.Logger,
) *HandlerManager {
	if logger == nil {
		logger = logs.NewNodeLogger(address, 1000)
	}
	return &HandlerManager{
		executor:   executor,
		controller: controller,
		runtime:    runtime,
		address:    address,
		Stats:      stats.NewStats(),
		Logger:     logger,
	}
}

// RegisterRoutes 注册所有路由
func (hm *HandlerManager) RegisterRoutes(mux *http.ServeMux) {
	// vault 指令与查询
	mux.HandleFunc("/vault/submit", hm.HandleSubmit)
	mux.HandleFunc("/vault/state", hm.HandleVaultState)
	// 账本
	mux.HandleFunc("/account", hm.HandleGetAccount)
	mux.HandleFunc("/receipt", hm.HandleGetReceipt)
	mux.HandleFunc("/faucet", hm.HandleFaucet)
	// 基本功能
	mux.HandleFunc("/status", hm.HandleStatus)
	mux.HandleFunc("/logs", hm.HandleLogs)
}

// 辅助方法

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// toReceiptResponse 附上错误的变体名：程序错误码或运行时错误类型
func toReceiptResponse(rc *vm.Receipt) *ReceiptResponse {
	resp := &ReceiptResponse{Receipt: rc, ErrorName: rc.ErrorKind}
	if resp.ErrorName == "" && rc.ErrorCode != 0 {
		if code, ok := vault.ErrorCodeFromCode(rc.ErrorCode); ok {
			resp.ErrorName = code.Name()
		}
	}
	return resp
}
