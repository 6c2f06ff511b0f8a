package vm

import (
	"errors"
	"fmt"

	"vault/types"

	"google.golang.org/protobuf/encoding/protowire"
)

var errMalformedAccount = errors.New("malformed account record")

// Account 账本里的一个账户
// 由系统程序拥有、没有数据且余额为 0 的账户视为不存在
type Account struct {
	Lamports uint64
	Owner    types.Address
	Data     []byte
}

// 字段编号与落库格式绑定，只能追加不能改
const (
	accountFieldLamports protowire.Number = 1
	accountFieldOwner    protowire.Number = 2
	accountFieldData     protowire.Number = 3
)

// IsSystemOwned 是否由系统程序拥有
func (a *Account) IsSystemOwned() bool {
	return a.Owner == types.SystemProgramID
}

// IsEmpty 可以被清理掉的账户
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.IsSystemOwned()
}

// Clone 深拷贝
func (a *Account) Clone() *Account {
	out := &Account{Lamports: a.Lamports, Owner: a.Owner}
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return out
}

// Marshal 编码为 protobuf wire 格式
func (a *Account) Marshal() []byte {
	b := make([]byte, 0, 48+len(a.Data))
	if a.Lamports != 0 {
		b = protowire.AppendTag(b, accountFieldLamports, protowire.VarintType)
		b = protowire.AppendVarint(b, a.Lamports)
	}
	if !a.Owner.IsZero() {
		b = protowire.AppendTag(b, accountFieldOwner, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Owner[:])
	}
	if len(a.Data) > 0 {
		b = protowire.AppendTag(b, accountFieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Data)
	}
	return b
}

// UnmarshalAccount 解码账户，未知字段跳过
func UnmarshalAccount(b []byte) (*Account, error) {
	a := &Account{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errMalformedAccount, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == accountFieldLamports && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: lamports: %v", errMalformedAccount, protowire.ParseError(n))
			}
			a.Lamports = v
			b = b[n:]
		case num == accountFieldOwner && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: owner: %v", errMalformedAccount, protowire.ParseError(n))
			}
			owner, err := types.AddressFromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("%w: owner: %v", errMalformedAccount, err)
			}
			a.Owner = owner
			b = b[n:]
		case num == accountFieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: data: %v", errMalformedAccount, protowire.ParseError(n))
			}
			a.Data = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", errMalformedAccount, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return a, nil
}
