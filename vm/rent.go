package vm

import "vault/config"

// Rent 免租最低余额参数
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	AccountOverhead     uint64 // 每个账户额外计费的元数据字节
}

// DefaultRent 与原链默认 Rent sysvar 一致
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2, AccountOverhead: 128}
}

// RentFromConfig 从运行时配置构造
func RentFromConfig(cfg config.RuntimeConfig) Rent {
	return Rent{
		LamportsPerByteYear: cfg.LamportsPerByteYear,
		ExemptionYears:      cfg.ExemptionYears,
		AccountOverhead:     cfg.AccountOverhead,
	}
}

// MinimumBalance 存放 space 字节数据的账户免租所需最少 lamports
// (overhead + space) * lamportsPerByteYear * exemptionYears
func (r Rent) MinimumBalance(space int) (uint64, error) {
	if space < 0 {
		space = 0
	}
	bytes, err := SafeAdd(r.AccountOverhead, uint64(space))
	if err != nil {
		return 0, err
	}
	perYear, err := SafeMul(bytes, r.LamportsPerByteYear)
	if err != nil {
		return 0, err
	}
	return SafeMul(perYear, r.ExemptionYears)
}
