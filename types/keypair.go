package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.dedis.ch/kyber/v3/sign/eddsa"
	"go.dedis.ch/kyber/v3/util/random"
)

// KeypairSize 序列化后的私钥长度：seed(32) || public(32)
const KeypairSize = 64

var (
	ErrInvalidKeypair   = errors.New("invalid keypair")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Keypair ed25519 密钥对，地址即公钥
type Keypair struct {
	ed   *eddsa.EdDSA
	addr Address
}

// GenerateKeypair 用系统随机源生成新密钥
func GenerateKeypair() (*Keypair, error) {
	ed := eddsa.NewEdDSA(random.New())
	return newKeypair(ed)
}

// KeypairFromBytes 从 64 字节 seed||public 恢复
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != KeypairSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKeypair, KeypairSize, len(b))
	}
	ed := new(eddsa.EdDSA)
	if err := ed.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	kp, err := newKeypair(ed)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(kp.addr[:], b[32:]) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKeypair)
	}
	return kp, nil
}

// KeypairFromHex 读取 hex 编码的密钥文件内容
func KeypairFromHex(s string) (*Keypair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return KeypairFromBytes(raw)
}

func newKeypair(ed *eddsa.EdDSA) (*Keypair, error) {
	pub, err := ed.Public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	addr, err := AddressFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Keypair{ed: ed, addr: addr}, nil
}

// Address 公钥地址
func (k *Keypair) Address() Address {
	return k.addr
}

// Bytes 64 字节序列化
func (k *Keypair) Bytes() ([]byte, error) {
	return k.ed.MarshalBinary()
}

// Hex 密钥文件格式
func (k *Keypair) Hex() (string, error) {
	b, err := k.Bytes()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Sign 对消息签名
func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	return k.ed.Sign(msg)
}

// VerifySignature 用地址（公钥）校验签名；不在曲线上的地址（PDA）永远无法通过
func VerifySignature(signer Address, msg, sig []byte) error {
	pub := curve.Point()
	if err := pub.UnmarshalBinary(signer[:]); err != nil {
		return fmt.Errorf("%w: signer %s is not a public key", ErrInvalidSignature, signer.Short())
	}
	if err := eddsa.Verify(pub, msg, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
