package vm

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vault/config"
	"vault/db"
	"vault/keys"
	"vault/logs"
	"vault/types"

	lru "github.com/hashicorp/golang-lru"
)

// Executor 指令执行器
type Executor struct {
	DB        Store
	Reg       *HandlerRegistry
	Locks     *LockTable
	ProgramID types.Address
	Rent      Rent
	Logger    logs.Logger

	ReadFn ReadThroughFn

	recent     *lru.Cache // 最近成功执行过的指令 ID，挡住大部分重放
	commitMu   sync.Mutex // 只串行化落库和 slot 分配，执行本身并行
	latestSlot atomic.Uint64
	airdropSeq atomic.Uint64
}

// NewExecutor 创建执行器
func NewExecutor(store Store, reg *HandlerRegistry, cfg config.RuntimeConfig, logger logs.Logger) (*Executor, error) {
	if store == nil {
		return nil, errors.New("nil store")
	}
	if reg == nil {
		reg = NewHandlerRegistry()
	}
	if logger == nil {
		logger = logs.NewNodeLogger("executor", 200)
	}
	programID, err := types.ParseAddress(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	size := cfg.ReplayCacheSize
	if size <= 0 {
		size = 1024
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	x := &Executor{
		DB:        store,
		Reg:       reg,
		Locks:     NewLockTable(cfg.LockStripes),
		ProgramID: programID,
		Rent:      RentFromConfig(cfg),
		Logger:    logger,
		recent:    recent,
	}
	x.ReadFn = func(key string) ([]byte, error) {
		return store.Get(key)
	}

	if raw, err := store.Get(keys.KeyLatestSlot()); err == nil && raw != nil {
		var slot uint64
		if _, err := fmt.Sscanf(string(raw), "%d", &slot); err == nil {
			x.latestSlot.Store(slot)
		}
	}
	return x, nil
}

// LatestSlot 最近一次成功提交的 slot
func (x *Executor) LatestSlot() uint64 {
	return x.latestSlot.Load()
}

// Execute 执行一条已签名指令，总是返回回执
func (x *Executor) Execute(ix *types.Instruction) *Receipt {
	if ix == nil {
		return x.reject("", "", "", ErrNilInstruction)
	}
	id := ix.ID()
	signer := ix.Signer.String()

	if err := ix.Verify(); err != nil {
		return x.reject(id, ix.Kind, signer, fmt.Errorf("%w: %v", ErrMissingSignature, err))
	}
	if ix.Program != x.ProgramID {
		return x.reject(id, ix.Kind, signer, fmt.Errorf("%w: %s", ErrIncorrectProgram, ix.Program))
	}
	h, ok := x.Reg.Get(ix.Kind)
	if !ok {
		return x.reject(id, ix.Kind, signer, fmt.Errorf("%w: %q", ErrUnknownKind, ix.Kind))
	}
	accounts, err := h.Accounts(ix)
	if err != nil {
		return x.reject(id, ix.Kind, signer, err)
	}

	// 签名者总会被扣款或作为收款方，一并加锁
	lockSet := append([]types.Address{ix.Signer}, accounts...)
	unlock := x.Locks.Lock(lockSet)
	defer unlock()

	// 加锁后再查重，同一条指令并发提交只会有一条成功
	if x.alreadyApplied(id) {
		return x.reject(id, ix.Kind, signer, ErrAlreadyProcessed)
	}

	view := NewStateView(x.ReadFn)
	ctx := NewInvokeContext(x.ProgramID, x.Rent, view, ix.Signer)
	ctx.RestrictWrites(lockSet)

	return x.run(id, ix.Kind, signer, view, ctx, func() error {
		return h.Execute(ctx, ix)
	})
}

// Airdrop 水龙头入账，不需要签名
func (x *Executor) Airdrop(to types.Address, amount uint64) *Receipt {
	// 序号保证同一纳秒内的多次空投 ID 也不相同
	id := fmt.Sprintf("airdrop-%s-%d-%d", to, time.Now().UnixNano(), x.airdropSeq.Add(1))

	unlock := x.Locks.Lock([]types.Address{to})
	defer unlock()

	view := NewStateView(x.ReadFn)
	ctx := NewInvokeContext(x.ProgramID, x.Rent, view)
	ctx.RestrictWrites([]types.Address{to})

	return x.run(id, "system.airdrop", "", view, ctx, func() error {
		if err := ctx.Airdrop(to, amount); err != nil {
			return err
		}
		ctx.Log("airdrop %d lamports to %s", amount, to)
		return nil
	})
}

// run 快照 → 执行 → 失败回滚 / 成功提交
func (x *Executor) run(id, kind, signer string, view StateView, ctx *InvokeContext, fn func() error) *Receipt {
	snap := view.Snapshot()

	if err := fn(); err != nil {
		if rerr := view.Revert(snap); rerr != nil {
			x.Logger.Error("[Executor] revert %s: %v", id, rerr)
		}
		rc := x.failedReceipt(id, kind, signer, err)
		rc.Logs = ctx.Logs()
		x.persistReceipt(rc)
		x.Logger.Info("[Executor] %s %s failed: %s", kind, shortID(id), rc.Error)
		return rc
	}

	diff := view.Diff()
	rc := &Receipt{
		InstructionID: id,
		Kind:          kind,
		Signer:        signer,
		Status:        StatusSucceed,
		Logs:          ctx.Logs(),
		WriteCount:    len(diff),
		Timestamp:     time.Now().Unix(),
	}
	if err := x.commit(id, diff, rc); err != nil {
		x.Logger.Error("[Executor] commit %s: %v", id, err)
		failed := x.failedReceipt(id, kind, signer, err)
		failed.Logs = rc.Logs
		return failed
	}
	x.recent.Add(id, struct{}{})
	x.Logger.Info("[Executor] %s %s ok slot=%d writes=%d", kind, shortID(id), rc.Slot, rc.WriteCount)
	return rc
}

// commit 写集、回执、防重放标记和 slot 索引在同一个 badger 事务里落库
func (x *Executor) commit(id string, diff []WriteOp, rc *Receipt) error {
	x.commitMu.Lock()
	defer x.commitMu.Unlock()

	slot, err := x.DB.NextSlot()
	if err != nil {
		return err
	}
	rc.Slot = slot

	batch := make([]db.WriteTask, 0, len(diff)+4)
	for _, op := range diff {
		if op.Del {
			batch = append(batch, db.DeleteTask(op.Key))
		} else {
			batch = append(batch, db.SetTask(op.Key, op.Value))
		}
	}
	batch = append(batch,
		db.SetTask(keys.KeyAppliedInstruction(id), []byte(fmt.Sprintf("%d", slot))),
		db.SetTask(keys.KeyReceipt(id), MarshalReceipt(rc)),
		db.SetTask(keys.KeySlotInstruction(slot), []byte(id)),
		db.SetTask(keys.KeyLatestSlot(), []byte(fmt.Sprintf("%d", slot))),
	)
	if err := x.DB.ApplyBatch(batch); err != nil {
		return err
	}
	x.latestSlot.Store(slot)
	return nil
}

func (x *Executor) alreadyApplied(id string) bool {
	if x.recent.Contains(id) {
		return true
	}
	v, err := x.DB.Get(keys.KeyAppliedInstruction(id))
	if err != nil {
		x.Logger.Warn("[Executor] replay lookup %s: %v", shortID(id), err)
		return false
	}
	if v != nil {
		x.recent.Add(id, struct{}{})
		return true
	}
	return false
}

// reject 执行前就被拒绝的指令：不落库
func (x *Executor) reject(id, kind, signer string, err error) *Receipt {
	rc := x.failedReceipt(id, kind, signer, err)
	x.Logger.Warn("[Executor] reject %s %s: %s", kind, shortID(id), rc.Error)
	return rc
}

// persistReceipt 失败回执也落库，方便按 ID 查询；不标记为已执行，修正后可重新提交
func (x *Executor) persistReceipt(rc *Receipt) {
	if rc.InstructionID == "" {
		return
	}
	// 已成功执行过的指令不能被后来的失败回执覆盖
	if prev, err := x.Receipt(rc.InstructionID); err == nil && prev.Succeeded() {
		return
	}
	if err := x.DB.ApplyBatch([]db.WriteTask{db.SetTask(keys.KeyReceipt(rc.InstructionID), MarshalReceipt(rc))}); err != nil {
		x.Logger.Warn("[Executor] persist receipt %s: %v", shortID(rc.InstructionID), err)
	}
}

func (x *Executor) failedReceipt(id, kind, signer string, err error) *Receipt {
	rc := &Receipt{
		InstructionID: id,
		Kind:          kind,
		Signer:        signer,
		Status:        StatusFailed,
		Error:         err.Error(),
		ErrorKind:     ErrorKind(err),
		Message:       err.Error(),
		Timestamp:     time.Now().Unix(),
	}
	var coded CodedError
	if errors.As(err, &coded) {
		rc.ErrorCode = coded.Code()
		rc.Message = coded.Message()
	}
	return rc
}

// ========== 查询 ==========

// ErrReceiptNotFound 没有该指令的回执
var ErrReceiptNotFound = errors.New("receipt not found")

// Receipt 按指令 ID 查回执
func (x *Executor) Receipt(id string) (*Receipt, error) {
	raw, err := x.DB.Get(keys.KeyReceipt(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrReceiptNotFound
	}
	return UnmarshalReceipt(raw)
}

// Account 读已提交的账户状态；不存在返回 (nil, nil)
func (x *Executor) Account(addr types.Address) (*Account, error) {
	raw, err := x.DB.Get(keys.KeyAccount(addr.String()))
	if err != nil || raw == nil {
		return nil, err
	}
	return UnmarshalAccount(raw)
}

// CountAccounts 已落库的账户数
func (x *Executor) CountAccounts() (int, error) {
	all, err := x.DB.Scan(keys.KeyAccountPrefix())
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
