package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

// ========== 程序派生地址（PDA） ==========
//
// address = sha256(seed_0 || ... || seed_n || programID || "ProgramDerivedAddress")
// 结果必须不在 ed25519 曲线上，这样保证不存在对应私钥，只有程序本身能通过
// 重新派生来"签名"。

const (
	// MaxSeeds 单次派生允许的种子个数（含 bump）
	MaxSeeds = 16
	// MaxSeedLen 单个种子的最大字节数
	MaxSeedLen = 32
)

var pdaMarker = []byte("ProgramDerivedAddress")

var (
	ErrMaxSeedLengthExceeded = errors.New("seed length exceeds 32 bytes")
	ErrTooManySeeds          = errors.New("too many seeds")
	// ErrInvalidSeeds 派生结果落在曲线上，该组种子不可用
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")
	// ErrNoViableBump 255..0 全部落在曲线上（概率可忽略）
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
	// ErrDerivationMismatch 派生证明不能还原出被扣款账户地址
	ErrDerivationMismatch = errors.New("derivation proof does not reproduce the account address")
)

var curve = new(edwards25519.Curve)

// IsOnCurve 判断 32 字节是否是合法的 ed25519 压缩点
func IsOnCurve(b []byte) bool {
	if len(b) != AddressSize {
		return false
	}
	p := curve.Point()
	return p.UnmarshalBinary(b) == nil
}

// CreateProgramAddress 用给定种子（调用方负责附上 bump）派生地址
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrTooManySeeds
	}
	size := len(pdaMarker) + AddressSize
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		size += len(s)
	}

	buf := make([]byte, 0, size)
	for _, s := range seeds {
		buf = append(buf, s...)
	}
	buf = append(buf, programID[:]...)
	buf = append(buf, pdaMarker...)

	h := chainhash.HashH(buf)
	if IsOnCurve(h[:]) {
		return Address{}, ErrInvalidSeeds
	}
	return Address(h), nil
}

// FindProgramAddress 从 255 往下搜 bump，返回第一个不在曲线上的地址
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// ========== 派生证明 ==========

// DerivationProof (domain tag, seed key, bump) 元组，被扣款账户凭它代替签名
type DerivationProof struct {
	Seeds [][]byte
	Bump  uint8
}

// NewDerivationProof 构造证明，seeds 通常是 [domainTag, seedKey]
func NewDerivationProof(bump uint8, seeds ...[]byte) DerivationProof {
	return DerivationProof{Seeds: seeds, Bump: bump}
}

// SignerSeeds 附上 bump 的完整种子序列
func (p DerivationProof) SignerSeeds() [][]byte {
	out := make([][]byte, 0, len(p.Seeds)+1)
	out = append(out, p.Seeds...)
	return append(out, []byte{p.Bump})
}

// Derive 用证明重新计算地址
func (p DerivationProof) Derive(programID Address) (Address, error) {
	return CreateProgramAddress(p.SignerSeeds(), programID)
}

// Verify 证明必须精确还原 expected
func (p DerivationProof) Verify(programID, expected Address) error {
	got, err := p.Derive(programID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	if got != expected {
		return fmt.Errorf("%w: derived %s, expected %s", ErrDerivationMismatch, got, expected)
	}
	return nil
}

// ========== 派生缓存 ==========

type derived struct {
	addr Address
	bump uint8
}

// Deriver 带 LRU 的 FindProgramAddress，同一组种子最多做一次 bump 搜索
type Deriver struct {
	programID Address
	cache     *lru.Cache
}

// NewDeriver size<=0 时不缓存
func NewDeriver(programID Address, size int) *Deriver {
	d := &Deriver{programID: programID}
	if size > 0 {
		d.cache, _ = lru.New(size)
	}
	return d
}

// ProgramID 派生所基于的程序地址
func (d *Deriver) ProgramID() Address {
	return d.programID
}

// Find 同 FindProgramAddress
func (d *Deriver) Find(seeds ...[]byte) (Address, uint8, error) {
	key := cacheKey(seeds)
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			r := v.(derived)
			return r.addr, r.bump, nil
		}
	}
	addr, bump, err := FindProgramAddress(seeds, d.programID)
	if err != nil {
		return Address{}, 0, err
	}
	if d.cache != nil {
		d.cache.Add(key, derived{addr: addr, bump: bump})
	}
	return addr, bump, nil
}

func cacheKey(seeds [][]byte) string {
	var sb strings.Builder
	for _, s := range seeds {
		sb.WriteByte(byte(len(s)))
		sb.Write(s)
	}
	return sb.String()
}
