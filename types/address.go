package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressSize 地址长度（ed25519 公钥 / PDA 均为 32 字节）
const AddressSize = 32

var (
	// ErrInvalidAddress base58 解码失败或长度不对
	ErrInvalidAddress = errors.New("invalid address")
)

// Address 账本上的账户地址，文本形式为 base58
type Address [AddressSize]byte

// SystemProgramID 系统程序地址（全零），系统账户的 owner
var SystemProgramID = Address{}

// ParseAddress 解析 base58 地址
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw := base58.Decode(s)
	if len(raw) != AddressSize {
		return a, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress 仅用于常量/测试
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes 从原始 32 字节构造地址
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// Short 日志里用的缩写形式
func (a Address) Short() string {
	s := a.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// Bytes 返回副本
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// Less 按字节序比较，用于加锁排序
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
