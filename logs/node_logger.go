package logs

import (
	"fmt"
	"sync"
	"time"
)

// Logger 节点私有日志接口，组件通过依赖注入拿到它，而不是直接用包级函数
type Logger interface {
	Trace(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Verbose(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	// Recent 返回最近 n 行（n<=0 表示全部）
	Recent(n int) []string
}

// nodeLogger 写全局 zap 输出的同时，在内存里保留最近 capacity 行，供 /logs 接口查看
type nodeLogger struct {
	address  string
	mu       sync.Mutex
	ring     []string
	next     int
	full     bool
	capacity int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*nodeLogger)
)

// NewNodeLogger 创建（或复用）某个节点地址对应的 Logger
func NewNodeLogger(address string, capacity int) Logger {
	if capacity <= 0 {
		capacity = 1000
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if l, ok := registry[address]; ok {
		return l
	}
	l := &nodeLogger{
		address:  address,
		ring:     make([]string, capacity),
		capacity: capacity,
	}
	registry[address] = l
	return l
}

// GetLogsForNode 返回某个节点缓存的日志行，按时间先后排列
func GetLogsForNode(address string) []string {
	registryMu.RLock()
	l, ok := registry[address]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return l.Recent(0)
}

func (l *nodeLogger) record(level string, format string, v ...interface{}) {
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format("2006-01-02 15:04:05.000"), level, fmt.Sprintf(format, v...))
	l.mu.Lock()
	l.ring[l.next] = line
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

func (l *nodeLogger) Recent(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	if l.full {
		out = make([]string, 0, l.capacity)
		out = append(out, l.ring[l.next:]...)
		out = append(out, l.ring[:l.next]...)
	} else {
		out = make([]string, l.next)
		copy(out, l.ring[:l.next])
	}
	if n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	return out
}

func (l *nodeLogger) Trace(format string, v ...interface{}) {
	l.record("TRACE", format, v...)
	emit(LevelTrace, format, v...)
}

func (l *nodeLogger) Debug(format string, v ...interface{}) {
	l.record("DEBUG", format, v...)
	emit(LevelDebug, format, v...)
}

func (l *nodeLogger) Verbose(format string, v ...interface{}) {
	l.record("VERBOSE", format, v...)
	emit(LevelVerbose, format, v...)
}

func (l *nodeLogger) Info(format string, v ...interface{}) {
	l.record("INFO", format, v...)
	emit(LevelInfo, format, v...)
}

func (l *nodeLogger) Warn(format string, v ...interface{}) {
	l.record("WARN", format, v...)
	emit(LevelWarning, format, v...)
}

func (l *nodeLogger) Error(format string, v ...interface{}) {
	l.record("ERROR", format, v...)
	emit(LevelError, format, v...)
}
