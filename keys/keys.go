// keys/keys.go
// 统一的 Key 定义包，供 VM 和 DB 模块共同使用
package keys

import (
	"fmt"
	"strings"
)

// ===================== 版本控制 =====================
// 设置全局 Key 版本前缀（例如 "v1" → 产出 "v1_<key>"）。
const KeyVersion = "v1"

// withVer 把版本号拼到最前面（保持下划线风格：v1_<...>）
func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 把带版本的键去掉版本前缀
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	return strings.TrimPrefix(prefixed, KeyVersion+"_")
}

// ===================== 账户相关 =====================

// KeyAccount 账户数据（lamports / owner / data）
// 例：v1_account_<base58Address>
func KeyAccount(addr string) string {
	return withVer("account_" + addr)
}

// KeyAccountPrefix 所有账户的前缀
func KeyAccountPrefix() string {
	return withVer("account_")
}

// AddressFromAccountKey 从账户 key 取回地址字符串
func AddressFromAccountKey(key string) (string, bool) {
	p := KeyAccountPrefix()
	if !strings.HasPrefix(key, p) {
		return "", false
	}
	return key[len(p):], true
}

// ===================== 指令相关 =====================

// KeyAppliedInstruction 已执行指令标记（幂等 / 防重放）
// 例：v1_applied_ix_<instructionID>
func KeyAppliedInstruction(id string) string {
	return withVer("applied_ix_" + id)
}

// KeyReceipt 指令执行回执
// 例：v1_receipt_<instructionID>
func KeyReceipt(id string) string {
	return withVer("receipt_" + id)
}

// KeyReceiptPrefix 回执前缀
func KeyReceiptPrefix() string {
	return withVer("receipt_")
}

// ===================== 元数据 =====================

// KeyLatestSlot 已提交的最新 slot（每成功提交一条指令 +1）
func KeyLatestSlot() string {
	return withVer("latest_slot")
}

// KeySlotInstruction slot 到指令 ID 的映射，便于按顺序回放
// 例：v1_slot_00000000000000000042
func KeySlotInstruction(slot uint64) string {
	return withVer(fmt.Sprintf("slot_%020d", slot))
}

// ===================== 分类 =====================

const (
	CategoryAccount = "account"
	CategoryReceipt = "receipt"
	CategoryMeta    = "meta"
)

// CategorizeKey 根据前缀给 WriteOp 打分类标签，便于追踪和调试
func CategorizeKey(key string) string {
	k := StripVersion(key)
	switch {
	case strings.HasPrefix(k, "account_"):
		return CategoryAccount
	case strings.HasPrefix(k, "receipt_"), strings.HasPrefix(k, "applied_ix_"):
		return CategoryReceipt
	default:
		return CategoryMeta
	}
}
