package types

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// 签名域分隔，避免把别的协议消息当成指令重放
var instructionDomain = []byte("vault-instruction-v1")

var ErrUnsigned = errors.New("instruction is not signed")

// Instruction 外部提交的一条已签名指令
type Instruction struct {
	Program Address `json:"program"`
	Kind    string  `json:"kind"`
	Signer  Address `json:"signer"`
	// Owner 要操作的 vault 属主；为空表示操作 Signer 自己的 vault
	Owner     Address `json:"owner,omitempty"`
	Amount    uint64  `json:"amount"`
	Nonce     uint64  `json:"nonce"`
	Signature []byte  `json:"signature,omitempty"`
}

// TargetOwner 实际被操作的 vault 属主
func (ix *Instruction) TargetOwner() Address {
	if ix.Owner.IsZero() {
		return ix.Signer
	}
	return ix.Owner
}

// SignBytes 确定性的待签名字节
func (ix *Instruction) SignBytes() []byte {
	buf := make([]byte, 0, len(instructionDomain)+2+len(ix.Kind)+3*AddressSize+16)
	buf = append(buf, instructionDomain...)
	buf = append(buf, ix.Program[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(ix.Kind)))
	buf = append(buf, ix.Kind...)
	buf = append(buf, ix.Signer[:]...)
	buf = append(buf, ix.TargetOwner().Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, ix.Amount)
	buf = binary.BigEndian.AppendUint64(buf, ix.Nonce)
	return buf
}

// Sign 用 kp 签名，同时把 Signer 设为 kp 的地址
func (ix *Instruction) Sign(kp *Keypair) error {
	ix.Signer = kp.Address()
	sig, err := kp.Sign(ix.SignBytes())
	if err != nil {
		return err
	}
	ix.Signature = sig
	return nil
}

// Verify 校验签名
func (ix *Instruction) Verify() error {
	if len(ix.Signature) == 0 {
		return ErrUnsigned
	}
	return VerifySignature(ix.Signer, ix.SignBytes(), ix.Signature)
}

// ID 指令唯一标识，只覆盖签名内容，同一消息的不同签名视为同一条
func (ix *Instruction) ID() string {
	sum := sha3.Sum256(ix.SignBytes())
	return hex.EncodeToString(sum[:])
}
