package types

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL 1 SOL = 10^9 lamports
const LamportsPerSOL = 1_000_000_000

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	lamportsPerSOLDec  = decimal.NewFromInt(LamportsPerSOL)
	maxLamportsDecimal = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

// ParseSOL 把 "1.5" 这种 SOL 金额换算成 lamports，精度超过 9 位小数报错
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return decimalToLamports(d.Mul(lamportsPerSOLDec), s)
}

// ParseAmount 带 "sol" 后缀按 SOL 解析，否则按整数 lamports 解析
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasSuffix(s, "sol") {
		return ParseSOL(strings.TrimSpace(strings.TrimSuffix(s, "sol")))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return decimalToLamports(d, s)
}

func decimalToLamports(d decimal.Decimal, raw string) (uint64, error) {
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, raw)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has sub-lamport precision", ErrInvalidAmount, raw)
	}
	if d.GreaterThan(maxLamportsDecimal) {
		return 0, fmt.Errorf("%w: %q exceeds u64", ErrInvalidAmount, raw)
	}
	return d.BigInt().Uint64(), nil
}

// FormatSOL lamports 转成 SOL 字符串，去掉多余的 0
func FormatSOL(lamports uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0)
	return d.Div(lamportsPerSOLDec).String()
}
