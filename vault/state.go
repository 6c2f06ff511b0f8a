package vault

import (
	"bytes"
	"encoding/binary"
	"errors"

	"vault/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// 派生种子的域标签
var (
	StateSeed  = []byte("vault_state")
	EscrowSeed = []byte("vault")
)

// VaultState 每个 owner 一条的账本记录
type VaultState struct {
	Owner      types.Address
	Balance    uint64
	EscrowBump uint8
	StateBump  uint8
}

// 数据区布局：discriminator(8) | owner(32) | balance(8, LE) | escrow_bump(1) | state_bump(1)
const (
	discriminatorLen = 8
	Space            = discriminatorLen + types.AddressSize + 8 + 1 + 1
)

// discriminator 区分账户数据类型的前 8 字节
var discriminator = chainhash.HashB([]byte("account:VaultState"))[:discriminatorLen]

var errNotVaultState = errors.New("account data is not a vault state")

// Marshal 编码为固定长度的账户数据
func (s *VaultState) Marshal() []byte {
	b := make([]byte, 0, Space)
	b = append(b, discriminator...)
	b = append(b, s.Owner[:]...)
	b = binary.LittleEndian.AppendUint64(b, s.Balance)
	b = append(b, s.EscrowBump, s.StateBump)
	return b
}

// UnmarshalVaultState 解码账户数据
func UnmarshalVaultState(data []byte) (*VaultState, error) {
	if len(data) < Space || !bytes.Equal(data[:discriminatorLen], discriminator) {
		return nil, errNotVaultState
	}
	s := &VaultState{}
	off := discriminatorLen
	copy(s.Owner[:], data[off:off+types.AddressSize])
	off += types.AddressSize
	s.Balance = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	s.EscrowBump = data[off]
	s.StateBump = data[off+1]
	return s, nil
}

// EscrowProof 从托管地址转出时出示的派生证明
func (s *VaultState) EscrowProof(stateAddr types.Address) types.DerivationProof {
	return types.NewDerivationProof(s.EscrowBump, EscrowSeed, stateAddr.Bytes())
}

// StateProof 重新验证状态地址用的派生证明
func (s *VaultState) StateProof() types.DerivationProof {
	return types.NewDerivationProof(s.StateBump, StateSeed, s.Owner.Bytes())
}
