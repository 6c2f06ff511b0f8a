package handlers

import (
	"vault/stats"
	"vault/types"
	"vault/vault"
	"vault/vm"
)

// ErrorResponse 非 2xx 响应体
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReceiptResponse /vault/submit、/faucet、/receipt 的响应
type ReceiptResponse struct {
	*vm.Receipt
	ErrorName string `json:"error_name,omitempty"`
}

// VaultStateResponse /vault/state
type VaultStateResponse struct {
	vault.Info
	BalanceSOL string `json:"balance_sol"`
}

// AccountResponse /account
type AccountResponse struct {
	Address    types.Address `json:"address"`
	Exists     bool          `json:"exists"`
	Lamports   uint64        `json:"lamports"`
	SOL        string        `json:"sol"`
	Owner      types.Address `json:"owner"`
	DataLen    int           `json:"data_len"`
	RentExempt uint64        `json:"rent_exempt_minimum"`
}

// FaucetRequest /faucet，Amount 支持 "1.5sol" 或整数 lamports
type FaucetRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// StatusResponse /status
type StatusResponse struct {
	Status       string            `json:"status"`
	ProgramID    types.Address     `json:"program_id"`
	LatestSlot   uint64            `json:"latest_slot"`
	Accounts     int               `json:"accounts"`
	Kinds        []string          `json:"kinds"`
	Faucet       bool              `json:"faucet"`
	Uptime       string            `json:"uptime"`
	APICalls     map[string]uint64 `json:"api_calls"`
	Instructions map[string]uint64 `json:"instructions"`
	// 按指令 kind 的执行耗时
	Latency map[string]stats.LatencySummary `json:"latency"`
}

// LogsResponse /logs
type LogsResponse struct {
	Logs []string `json:"logs"`
}
