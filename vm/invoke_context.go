package vm

import (
	"fmt"

	"vault/keys"
	"vault/types"
)

// InvokeContext 单条指令的执行上下文
// 所有读写都落在 view 上，失败时由执行器整体回滚
type InvokeContext struct {
	ProgramID types.Address
	Rent      Rent

	view     StateView
	signers  map[types.Address]struct{}
	writable map[types.Address]struct{} // nil 表示不限制
	logs     []string
}

// NewInvokeContext 创建上下文，signers 为已验签的地址
func NewInvokeContext(programID types.Address, rent Rent, view StateView, signers ...types.Address) *InvokeContext {
	s := make(map[types.Address]struct{}, len(signers))
	for _, a := range signers {
		s[a] = struct{}{}
	}
	return &InvokeContext{
		ProgramID: programID,
		Rent:      rent,
		view:      view,
		signers:   s,
	}
}

// RestrictWrites 只允许写入 addrs 中的账户
func (c *InvokeContext) RestrictWrites(addrs []types.Address) {
	c.writable = make(map[types.Address]struct{}, len(addrs))
	for _, a := range addrs {
		c.writable[a] = struct{}{}
	}
}

// IsSigner addr 是否签过名
func (c *InvokeContext) IsSigner(addr types.Address) bool {
	_, ok := c.signers[addr]
	return ok
}

// Log 记一条程序日志，随回执返回
func (c *InvokeContext) Log(format string, v ...interface{}) {
	c.logs = append(c.logs, fmt.Sprintf(format, v...))
}

// Logs 已记录的程序日志
func (c *InvokeContext) Logs() []string {
	return c.logs
}

// ========== 账户读写 ==========

// GetAccount 读账户；不存在时返回系统拥有的空账户和 false
func (c *InvokeContext) GetAccount(addr types.Address) (*Account, bool, error) {
	raw, ok, err := c.view.Get(keys.KeyAccount(addr.String()))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Account{Owner: types.SystemProgramID}, false, nil
	}
	acc, err := UnmarshalAccount(raw)
	if err != nil {
		return nil, false, fmt.Errorf("account %s: %w", addr, err)
	}
	return acc, true, nil
}

// Lamports 账户余额，不存在为 0
func (c *InvokeContext) Lamports(addr types.Address) (uint64, error) {
	acc, _, err := c.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// setAccount 写回账户，空的系统账户直接清除
func (c *InvokeContext) setAccount(addr types.Address, acc *Account) error {
	if c.writable != nil {
		if _, ok := c.writable[addr]; !ok {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, addr)
		}
	}
	key := keys.KeyAccount(addr.String())
	if acc.IsEmpty() {
		c.view.Del(key)
		return nil
	}
	c.view.Set(key, acc.Marshal())
	return nil
}

// WriteData 程序写自己账户的数据区，不能超过已分配空间
func (c *InvokeContext) WriteData(addr types.Address, data []byte) error {
	acc, ok, err := c.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if acc.Owner != c.ProgramID {
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, addr, acc.Owner)
	}
	if len(data) > len(acc.Data) {
		return fmt.Errorf("%w: %d > %d", ErrAccountDataTooBig, len(data), len(acc.Data))
	}
	buf := make([]byte, len(acc.Data))
	copy(buf, data)
	acc.Data = buf
	return c.setAccount(addr, acc)
}

// ========== 系统指令 ==========

// Transfer 普通转账，from 必须签名
func (c *InvokeContext) Transfer(from, to types.Address, amount uint64) error {
	if !c.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from)
	}
	return c.move(from, to, amount)
}

// TransferAsDerived 从程序派生地址转出，proof 必须能还原出 from
func (c *InvokeContext) TransferAsDerived(from, to types.Address, amount uint64, proof types.DerivationProof) error {
	if err := proof.Verify(c.ProgramID, from); err != nil {
		return err
	}
	return c.move(from, to, amount)
}

// move 授权检查之后的实际扣款入账
func (c *InvokeContext) move(from, to types.Address, amount uint64) error {
	src, _, err := c.GetAccount(from)
	if err != nil {
		return err
	}
	// 带数据的账户不能作为系统转账的付款方
	if !src.IsSystemOwned() || len(src.Data) > 0 {
		return fmt.Errorf("%w: transfer source %s", ErrIllegalOwner, from)
	}
	if src.Lamports < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src.Lamports, amount)
	}
	if amount == 0 {
		return nil
	}

	src.Lamports -= amount
	if err := c.setAccount(from, src); err != nil {
		return err
	}

	// from == to 时这里读到的是刚扣过款的值
	dst, _, err := c.GetAccount(to)
	if err != nil {
		return err
	}
	if dst.Lamports, err = SafeAdd(dst.Lamports, amount); err != nil {
		return err
	}
	return c.setAccount(to, dst)
}

// CreateAccount 在程序派生地址上分配 space 字节并交给 owner，payer 出免租押金
// 地址上已有少量 lamports（有人提前转入）时只补足差额
func (c *InvokeContext) CreateAccount(payer, addr types.Address, space int, owner types.Address, proof types.DerivationProof) error {
	if !c.IsSigner(payer) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, payer)
	}
	if err := proof.Verify(c.ProgramID, addr); err != nil {
		return err
	}

	acc, _, err := c.GetAccount(addr)
	if err != nil {
		return err
	}
	if !acc.IsSystemOwned() || len(acc.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, addr)
	}

	required, err := c.Rent.MinimumBalance(space)
	if err != nil {
		return err
	}
	if acc.Lamports < required {
		if err := c.Transfer(payer, addr, required-acc.Lamports); err != nil {
			return err
		}
		if acc, _, err = c.GetAccount(addr); err != nil {
			return err
		}
	}

	acc.Owner = owner
	acc.Data = make([]byte, space)
	return c.setAccount(addr, acc)
}

// CloseAccount 关闭程序拥有的账户，余额全部退给 recipient
func (c *InvokeContext) CloseAccount(addr, recipient types.Address) error {
	acc, ok, err := c.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if acc.Owner != c.ProgramID {
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, addr, acc.Owner)
	}
	if addr == recipient {
		return fmt.Errorf("%w: cannot close %s into itself", ErrIllegalOwner, addr)
	}
	// 先确认被关闭的账户可写，再给 recipient 记账
	if c.writable != nil {
		if _, ok := c.writable[addr]; !ok {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, addr)
		}
	}

	dst, _, err := c.GetAccount(recipient)
	if err != nil {
		return err
	}
	if dst.Lamports, err = SafeAdd(dst.Lamports, acc.Lamports); err != nil {
		return err
	}
	if err := c.setAccount(recipient, dst); err != nil {
		return err
	}
	c.view.Del(keys.KeyAccount(addr.String()))
	return nil
}

// Airdrop 凭空给 to 记账，仅水龙头使用
func (c *InvokeContext) Airdrop(to types.Address, amount uint64) error {
	dst, _, err := c.GetAccount(to)
	if err != nil {
		return err
	}
	if dst.Lamports, err = SafeAdd(dst.Lamports, amount); err != nil {
		return err
	}
	return c.setAccount(to, dst)
}
