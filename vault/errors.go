package vault

import "fmt"

// ErrorCode vault 程序自定义错误，从 6000 开始编号
type ErrorCode uint32

const (
	InvalidAmount ErrorCode = 6000 + iota
	InsufficientBalance
	Overflow
	VaultNotEmpty
	Unauthorized
	AccountNotInitialized
)

var errorNames = map[ErrorCode]string{
	InvalidAmount:         "InvalidAmount",
	InsufficientBalance:   "InsufficientBalance",
	Overflow:              "Overflow",
	VaultNotEmpty:         "VaultNotEmpty",
	Unauthorized:          "Unauthorized",
	AccountNotInitialized: "AccountNotInitialized",
}

// 展示给用户的文案，只在 API / CLI / 日志里使用
var errorMessages = map[ErrorCode]string{
	InvalidAmount:         "Amount must be greater than 0",
	InsufficientBalance:   "Insufficient balance for withdrawal",
	Overflow:              "Arithmetic overflow",
	VaultNotEmpty:         "Vault must be empty before closing",
	Unauthorized:          "Caller is not the vault owner",
	AccountNotInitialized: "Vault has not been initialized",
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("custom program error %d (%s)", uint32(e), e.Name())
}

// Code 数字错误码
func (e ErrorCode) Code() uint32 { return uint32(e) }

// Name 变体名
func (e ErrorCode) Name() string {
	if n, ok := errorNames[e]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

// Message 可读文案
func (e ErrorCode) Message() string {
	if m, ok := errorMessages[e]; ok {
		return m
	}
	return e.Name()
}

// ErrorCodeFromCode 从回执里的数字还原错误码
func ErrorCodeFromCode(code uint32) (ErrorCode, bool) {
	e := ErrorCode(code)
	_, ok := errorNames[e]
	return e, ok
}
