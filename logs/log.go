package logs

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

var (
	mu       sync.RWMutex
	logLevel = LevelInfo
	base     *zap.SugaredLogger
	// MyAddress 当前节点标识，拼在每行日志的 node 字段里
	MyAddress = "0x0000000"
)

func init() {
	base = newSugared(os.Stdout, LevelInfo)
}

// zap 没有 trace/verbose 两档，向下映射到 debug
func toZapLevel(level int) zapcore.Level {
	switch {
	case level <= LevelVerbose:
		return zapcore.DebugLevel
	case level == LevelInfo:
		return zapcore.InfoLevel
	case level == LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func newSugared(w io.Writer, level int) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(toZapLevel(level)),
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

// SetLevel 调整全局日志级别
func SetLevel(level int) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
	base = newSugared(os.Stdout, level)
}

// SetOutput 把全局日志重定向到 w（测试里常用 io.Discard）
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newSugared(w, logLevel)
}

// ParseLevel 把配置里的字符串级别转成常量，未知值按 info 处理
func ParseLevel(s string) int {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "verbose":
		return LevelVerbose
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func shortAddr() string {
	if len(MyAddress) > 7 {
		return MyAddress[:7]
	}
	return MyAddress
}

func emit(level int, format string, v ...interface{}) {
	mu.RLock()
	l, lv := base, logLevel
	mu.RUnlock()
	if lv > level {
		return
	}
	msg := fmt.Sprintf(format, v...)
	switch {
	case level <= LevelVerbose:
		l.Debugw(msg, "node", shortAddr())
	case level == LevelInfo:
		l.Infow(msg, "node", shortAddr())
	case level == LevelWarning:
		l.Warnw(msg, "node", shortAddr())
	default:
		l.Errorw(msg, "node", shortAddr())
	}
}

// 包级别的日志方法
func Trace(format string, v ...interface{})   { emit(LevelTrace, format, v...) }
func Debug(format string, v ...interface{})   { emit(LevelDebug, format, v...) }
func Verbose(format string, v ...interface{}) { emit(LevelVerbose, format, v...) }
func Info(format string, v ...interface{})    { emit(LevelInfo, format, v...) }
func Warn(format string, v ...interface{})    { emit(LevelWarning, format, v...) }
func Error(format string, v ...interface{})   { emit(LevelError, format, v...) }

// Sync 刷新底层 zap 缓冲，进程退出前调用
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	_ = l.Sync()
}
