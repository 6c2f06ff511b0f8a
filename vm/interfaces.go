package vm

import (
	"vault/db"
	"vault/types"
)

// ========== 核心接口定义 ==========

// StateView 状态视图接口
type StateView interface {
	//读/写/删某个 key 的状态；写入只写进这个视图，不直接落到底层 DB。
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte)
	Del(key string)
	//做一个快照点、必要时回滚到该点，失败的指令整体回滚。
	Snapshot() int
	Revert(snap int) error
	//把执行期间累积的写集导出来，给后续“真正落库”用。
	Diff() []WriteOp
}

// InstructionHandler 指令处理器接口
type InstructionHandler interface {
	//标识这个 Handler 处理哪种指令（比如 "vault.deposit"）。
	Kind() string
	//指令会写到的全部账户，执行前按此加锁；执行期间写别的账户会失败。
	Accounts(ix *types.Instruction) ([]types.Address, error)
	//在 InvokeContext 上执行；返回错误时执行器负责回滚整个视图。
	Execute(ctx *InvokeContext, ix *types.Instruction) error
}

// Store 执行器依赖的持久化层，由 db.Manager 实现
type Store interface {
	Get(key string) ([]byte, error)
	Scan(prefix string) (map[string][]byte, error)
	ApplyBatch(batch []db.WriteTask) error
	NextSlot() (uint64, error)
}

// （读穿函数）
// 当 StateView.Get 本地 overlay 没命中时，定义“如何从底层存储读真实值”的函数签名
type ReadThroughFn func(key string) ([]byte, error)
