package crt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"vault/logs"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160"
)

// IdentityHRP 节点身份串的 bech32 前缀
const IdentityHRP = "vnode"

// NodeIdentity hash160(公钥) 的 bech32 编码，写进证书 Organization 字段，
// 客户端跳过证书校验时可以用它人工核对节点
func NodeIdentity(pubKey *ecdsa.PublicKey) (string, error) {
	ecdhPub, err := pubKey.ECDH()
	if err != nil {
		return "", err
	}
	sha256Hash := sha256.Sum256(ecdhPub.Bytes())

	ripemdHasher := ripemd160.New()
	if _, err := ripemdHasher.Write(sha256Hash[:]); err != nil {
		return "", err
	}
	hash160 := ripemdHasher.Sum(nil)

	converted, err := bech32.ConvertBits(hash160, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(IdentityHRP, converted)
}

// GenerateSelfSigned 生成 ECDSA P-256 自签名证书，返回节点身份串
func GenerateSelfSigned(certPath, keyPath string, validity time.Duration) (string, error) {
	if validity <= 0 {
		validity = 365 * 24 * time.Hour
	}
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}
	identity, err := NodeIdentity(&privateKey.PublicKey)
	if err != nil {
		return "", err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return "", err
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "vaultnode",
			Organization: []string{identity},
		},
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(validity),
		KeyUsage:  x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return "", err
	}
	privBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	if err := writePEM(certPath, "CERTIFICATE", certBytes, 0o644); err != nil {
		return "", err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", privBytes, 0o600); err != nil {
		return "", err
	}

	logs.Debug("Certificate and key generated: cert=%s key=%s", certPath, keyPath)
	return identity, nil
}

// LoadOrCreate 读取证书和私钥，任一文件不存在时重新生成
func LoadOrCreate(certPath, keyPath string, validityDays int) (tls.Certificate, string, error) {
	if !exists(certPath) || !exists(keyPath) {
		validity := time.Duration(validityDays) * 24 * time.Hour
		if _, err := GenerateSelfSigned(certPath, keyPath, validity); err != nil {
			return tls.Certificate{}, "", fmt.Errorf("generate certificate: %w", err)
		}
		logs.Info("generated self-signed certificate %s", certPath)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("load certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, "", err
	}
	cert.Leaf = leaf
	if time.Now().After(leaf.NotAfter) {
		logs.Warn("certificate %s expired at %s", certPath, leaf.NotAfter.Format(time.RFC3339))
	}

	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return cert, "", nil
	}
	identity, err := NodeIdentity(pub)
	if err != nil {
		return tls.Certificate{}, "", err
	}
	return cert, identity, nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
