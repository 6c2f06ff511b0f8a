package vault

import (
	"errors"
	"fmt"

	"vault/types"
	"vault/vm"
)

// Controller vault 程序的四个入口
// 每个方法都在调用方给的 InvokeContext 上执行，出错时由执行器整体回滚
type Controller struct {
	deriver *types.Deriver
}

// NewController deriver 的 ProgramID 必须就是运行时的 ProgramID
func NewController(deriver *types.Deriver) *Controller {
	return &Controller{deriver: deriver}
}

// ProgramID 所属程序
func (c *Controller) ProgramID() types.Address {
	return c.deriver.ProgramID()
}

// Addresses 某个 owner 的状态地址和托管地址
type Addresses struct {
	State      types.Address
	StateBump  uint8
	Escrow     types.Address
	EscrowBump uint8
}

// Derive 计算 owner 对应的两个派生地址
func (c *Controller) Derive(owner types.Address) (Addresses, error) {
	state, stateBump, err := c.deriver.Find(StateSeed, owner.Bytes())
	if err != nil {
		return Addresses{}, fmt.Errorf("derive state address: %w", err)
	}
	escrow, escrowBump, err := c.deriver.Find(EscrowSeed, state.Bytes())
	if err != nil {
		return Addresses{}, fmt.Errorf("derive escrow address: %w", err)
	}
	return Addresses{State: state, StateBump: stateBump, Escrow: escrow, EscrowBump: escrowBump}, nil
}

// Initialize 为 owner 创建 VaultState，押金由 owner 支付
func (c *Controller) Initialize(ctx *vm.InvokeContext, owner types.Address) (*VaultState, error) {
	if !ctx.IsSigner(owner) {
		return nil, fmt.Errorf("%w: %s did not sign", Unauthorized, owner)
	}
	addrs, err := c.Derive(owner)
	if err != nil {
		return nil, err
	}

	proof := types.NewDerivationProof(addrs.StateBump, StateSeed, owner.Bytes())
	if err := ctx.CreateAccount(owner, addrs.State, Space, ctx.ProgramID, proof); err != nil {
		return nil, err
	}

	st := &VaultState{
		Owner:      owner,
		Balance:    0,
		EscrowBump: addrs.EscrowBump,
		StateBump:  addrs.StateBump,
	}
	if err := ctx.WriteData(addrs.State, st.Marshal()); err != nil {
		return nil, err
	}
	ctx.Log("vault initialized: state=%s escrow=%s", addrs.State, addrs.Escrow)
	return st, nil
}

// Deposit owner 向托管账户转入 amount
func (c *Controller) Deposit(ctx *vm.InvokeContext, owner types.Address, amount uint64) (*VaultState, error) {
	if amount == 0 {
		return nil, InvalidAmount
	}
	st, addrs, err := c.load(ctx, owner)
	if err != nil {
		return nil, err
	}

	// 先算新余额，溢出时不做任何转账
	next, err := vm.SafeAdd(st.Balance, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %d + %d", Overflow, st.Balance, amount)
	}
	if err := ctx.Transfer(owner, addrs.Escrow, amount); err != nil {
		if errors.Is(err, vm.ErrOverflow) {
			return nil, fmt.Errorf("%w: escrow %s", Overflow, addrs.Escrow)
		}
		return nil, err
	}

	st.Balance = next
	if err := ctx.WriteData(addrs.State, st.Marshal()); err != nil {
		return nil, err
	}
	ctx.Log("deposit %d, balance %d", amount, st.Balance)
	return st, nil
}

// Withdraw 从托管账户取回 amount，凭派生证明授权
func (c *Controller) Withdraw(ctx *vm.InvokeContext, owner types.Address, amount uint64) (*VaultState, error) {
	if amount == 0 {
		return nil, InvalidAmount
	}
	st, addrs, err := c.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	// 逻辑余额检查必须在转账之前，运行时只知道托管账户的实际余额
	if amount > st.Balance {
		return nil, fmt.Errorf("%w: requested %d, balance %d", InsufficientBalance, amount, st.Balance)
	}

	if err := ctx.TransferAsDerived(addrs.Escrow, owner, amount, st.EscrowProof(addrs.State)); err != nil {
		return nil, err
	}

	next, err := vm.SafeSub(st.Balance, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %d - %d", InsufficientBalance, st.Balance, amount)
	}
	st.Balance = next
	if err := ctx.WriteData(addrs.State, st.Marshal()); err != nil {
		return nil, err
	}
	ctx.Log("withdraw %d, balance %d", amount, st.Balance)
	return st, nil
}

// Close 余额为 0 时销毁 VaultState；托管账户里账外的残余一并退给 owner
func (c *Controller) Close(ctx *vm.InvokeContext, owner types.Address) error {
	st, addrs, err := c.load(ctx, owner)
	if err != nil {
		return err
	}
	if st.Balance != 0 {
		return fmt.Errorf("%w: balance %d", VaultNotEmpty, st.Balance)
	}

	residual, err := ctx.Lamports(addrs.Escrow)
	if err != nil {
		return err
	}
	if residual > 0 {
		if err := ctx.TransferAsDerived(addrs.Escrow, owner, residual, st.EscrowProof(addrs.State)); err != nil {
			return err
		}
		ctx.Log("swept %d untracked lamports from escrow", residual)
	}

	if err := ctx.CloseAccount(addrs.State, owner); err != nil {
		return err
	}
	ctx.Log("vault closed: state=%s", addrs.State)
	return nil
}

// load 读取并校验 owner 的 VaultState，非 owner 在任何写入之前被拒绝
func (c *Controller) load(ctx *vm.InvokeContext, owner types.Address) (*VaultState, Addresses, error) {
	addrs, err := c.Derive(owner)
	if err != nil {
		return nil, Addresses{}, err
	}
	acc, ok, err := ctx.GetAccount(addrs.State)
	if err != nil {
		return nil, addrs, err
	}
	if !ok || acc.Owner != ctx.ProgramID {
		return nil, addrs, fmt.Errorf("%w: %s", AccountNotInitialized, addrs.State)
	}
	st, err := UnmarshalVaultState(acc.Data)
	if err != nil {
		return nil, addrs, fmt.Errorf("%w: %v", AccountNotInitialized, err)
	}
	if st.Owner != owner || !ctx.IsSigner(owner) {
		return nil, addrs, fmt.Errorf("%w: vault owned by %s", Unauthorized, st.Owner)
	}
	return st, addrs, nil
}
