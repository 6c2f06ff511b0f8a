package vm

import (
	"errors"

	"vault/types"
)

// ========== 错误定义 ==========

var (
	ErrNilInstruction    = errors.New("nil instruction")
	ErrInvalidSnapshot   = errors.New("invalid snapshot index")
	ErrUnknownKind       = errors.New("unknown instruction kind")
	ErrIncorrectProgram  = errors.New("instruction addressed to another program")
	ErrAlreadyProcessed  = errors.New("instruction already processed")
	ErrReadonlyAccount   = errors.New("account not declared writable")
	ErrIllegalOwner      = errors.New("account owned by another program")
	ErrAccountDataTooBig = errors.New("account data exceeds allocated space")

	// 运行时原样透传给调用方的错误
	ErrAccountAlreadyExists = errors.New("account already in use")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientFunds    = errors.New("insufficient lamports")
	ErrMissingSignature     = errors.New("missing required signature")
	ErrDerivationMismatch   = types.ErrDerivationMismatch
)

// CodedError 程序自定义错误，回执里带上错误码、变体名和可读信息
type CodedError interface {
	error
	Code() uint32
	Name() string
	Message() string
}

// 运行时错误的稳定名字，写进回执的 error_kind
const (
	KindAccountAlreadyExists = "AccountAlreadyExists"
	KindAccountNotFound      = "AccountNotFound"
	KindInsufficientFunds    = "InsufficientFunds"
	KindMissingSignature     = "MissingSignature"
	KindDerivationMismatch   = "DerivationMismatch"
	KindAlreadyProcessed     = "AlreadyProcessed"
	KindUnknownInstruction   = "UnknownInstruction"
	KindIncorrectProgram     = "IncorrectProgram"
	KindReadonlyAccount      = "ReadonlyAccount"
	KindIllegalOwner         = "IllegalOwner"
	KindAccountDataTooBig    = "AccountDataTooBig"
	KindArithmeticOverflow   = "ArithmeticOverflow"
	KindArithmeticUnderflow  = "ArithmeticUnderflow"
	KindInvalidInstruction   = "InvalidInstruction"
	// KindInternal 存储层等非预期错误
	KindInternal = "Internal"
)

var runtimeErrorKinds = []struct {
	err  error
	kind string
}{
	{ErrAccountAlreadyExists, KindAccountAlreadyExists},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrMissingSignature, KindMissingSignature},
	{ErrDerivationMismatch, KindDerivationMismatch},
	{ErrAlreadyProcessed, KindAlreadyProcessed},
	{ErrUnknownKind, KindUnknownInstruction},
	{ErrIncorrectProgram, KindIncorrectProgram},
	{ErrReadonlyAccount, KindReadonlyAccount},
	{ErrIllegalOwner, KindIllegalOwner},
	{ErrAccountDataTooBig, KindAccountDataTooBig},
	{ErrOverflow, KindArithmeticOverflow},
	{ErrUnderflow, KindArithmeticUnderflow},
	{ErrNilInstruction, KindInvalidInstruction},
}

// ErrorKind 错误的变体名：程序错误取自身的 Name，运行时错误查表，其余为 Internal
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Name()
	}
	for _, e := range runtimeErrorKinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// ========== 基础类型定义 ==========

// “要怎么改状态”的清单
type WriteOp struct {
	Key      string // 完整的 key（包括命名空间前缀）
	Value    []byte // 序列化后的值
	Del      bool   // true表示删除操作
	Category string // 数据分类：account, receipt, meta，便于追踪和调试
}

const (
	StatusSucceed = "SUCCEED"
	StatusFailed  = "FAILED"
)

// 记录执行结果
type Receipt struct {
	InstructionID string   `json:"instruction_id"`
	Kind          string   `json:"kind"`
	Signer        string   `json:"signer,omitempty"`
	Status        string   `json:"status"` // "SUCCEED" or "FAILED"
	Error         string   `json:"error,omitempty"`
	ErrorCode     uint32   `json:"error_code,omitempty"`
	ErrorKind     string   `json:"error_kind,omitempty"`
	Message       string   `json:"message,omitempty"`
	Logs          []string `json:"logs,omitempty"`
	WriteCount    int      `json:"write_count"`
	Slot          uint64   `json:"slot,omitempty"` // 仅成功提交的指令占用 slot
	Timestamp     int64    `json:"timestamp"`
}

// Succeeded 是否执行成功
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == StatusSucceed
}
