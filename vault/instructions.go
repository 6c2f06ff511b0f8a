package vault

import (
	"vault/types"
	"vault/vm"
)

// 指令类型
const (
	KindInitialize = "vault.initialize"
	KindDeposit    = "vault.deposit"
	KindWithdraw   = "vault.withdraw"
	KindClose      = "vault.close"
)

// Kinds 全部 vault 指令类型
func Kinds() []string {
	return []string{KindInitialize, KindDeposit, KindWithdraw, KindClose}
}

// instructionHandler 把一个 Controller 方法包装成 vm.InstructionHandler
type instructionHandler struct {
	kind string
	ctl  *Controller
	exec func(c *Controller, ctx *vm.InvokeContext, ix *types.Instruction) error
}

func (h *instructionHandler) Kind() string { return h.kind }

// Accounts owner、状态账户、托管账户
func (h *instructionHandler) Accounts(ix *types.Instruction) ([]types.Address, error) {
	owner := ix.TargetOwner()
	addrs, err := h.ctl.Derive(owner)
	if err != nil {
		return nil, err
	}
	return []types.Address{owner, addrs.State, addrs.Escrow}, nil
}

func (h *instructionHandler) Execute(ctx *vm.InvokeContext, ix *types.Instruction) error {
	return h.exec(h.ctl, ctx, ix)
}

// Handlers 四个入口对应的处理器
func (c *Controller) Handlers() []vm.InstructionHandler {
	return []vm.InstructionHandler{
		&instructionHandler{kind: KindInitialize, ctl: c, exec: func(c *Controller, ctx *vm.InvokeContext, ix *types.Instruction) error {
			_, err := c.Initialize(ctx, ix.TargetOwner())
			return err
		}},
		&instructionHandler{kind: KindDeposit, ctl: c, exec: func(c *Controller, ctx *vm.InvokeContext, ix *types.Instruction) error {
			_, err := c.Deposit(ctx, ix.TargetOwner(), ix.Amount)
			return err
		}},
		&instructionHandler{kind: KindWithdraw, ctl: c, exec: func(c *Controller, ctx *vm.InvokeContext, ix *types.Instruction) error {
			_, err := c.Withdraw(ctx, ix.TargetOwner(), ix.Amount)
			return err
		}},
		&instructionHandler{kind: KindClose, ctl: c, exec: func(c *Controller, ctx *vm.InvokeContext, ix *types.Instruction) error {
			return c.Close(ctx, ix.TargetOwner())
		}},
	}
}

// Register 把 vault 指令注册到 reg
func Register(reg *vm.HandlerRegistry, c *Controller) error {
	for _, h := range c.Handlers() {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// ========== 查询 ==========

// AccountReader 读取已提交账户，不存在返回 (nil, nil)
type AccountReader interface {
	Account(addr types.Address) (*vm.Account, error)
}

// Info 对外展示的 vault 概况
type Info struct {
	Owner         types.Address `json:"owner"`
	State         types.Address `json:"state"`
	Escrow        types.Address `json:"escrow"`
	Initialized   bool          `json:"initialized"`
	Balance       uint64        `json:"balance"`
	EscrowHeld    uint64        `json:"escrow_held"`
	StateLamports uint64        `json:"state_lamports"`
	EscrowBump    uint8         `json:"escrow_bump"`
	StateBump     uint8         `json:"state_bump"`
}

// Inspect 读取 owner 的 vault 当前状态（未初始化时 Initialized=false）
func (c *Controller) Inspect(r AccountReader, owner types.Address) (*Info, error) {
	addrs, err := c.Derive(owner)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Owner:      owner,
		State:      addrs.State,
		Escrow:     addrs.Escrow,
		EscrowBump: addrs.EscrowBump,
		StateBump:  addrs.StateBump,
	}

	escrow, err := r.Account(addrs.Escrow)
	if err != nil {
		return nil, err
	}
	if escrow != nil {
		info.EscrowHeld = escrow.Lamports
	}

	acc, err := r.Account(addrs.State)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.Owner != c.ProgramID() {
		return info, nil
	}
	st, err := UnmarshalVaultState(acc.Data)
	if err != nil {
		return info, nil
	}
	info.Initialized = true
	info.Balance = st.Balance
	info.StateLamports = acc.Lamports
	info.EscrowBump = st.EscrowBump
	return info, nil
}
