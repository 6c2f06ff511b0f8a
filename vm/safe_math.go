package vm

import (
	"errors"
	"math"
)

// safe_math.go 提供带溢出检查的 lamports 运算
// 余额一律是 uint64，任何回绕都当作错误而不是截断

var (
	// ErrOverflow 加法溢出错误
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow 减法下溢错误（结果为负数）
	ErrUnderflow = errors.New("arithmetic underflow")
)

// SafeAdd 安全加法：a + b
// 如果结果超过 MaxUint64，返回 ErrOverflow
func SafeAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// SafeSub 安全减法：a - b
// 如果 a < b，返回 ErrUnderflow
func SafeSub(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// SafeMul 安全乘法：a * b，租金计算用
func SafeMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}
