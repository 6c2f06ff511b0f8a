package stats

import (
	"sync"
	"time"
)

type Stats struct {
	statsLock     sync.RWMutex
	apiCallCounts map[string]uint64
	// 指令执行结果计数：SUCCEED / FAILED
	instructionResults map[string]uint64
	startedAt          time.Time

	// 每类指令的执行耗时
	Latency *LatencyRecorder
}

func NewStats() *Stats {
	return &Stats{
		apiCallCounts:      make(map[string]uint64),
		instructionResults: make(map[string]uint64),
		startedAt:          time.Now(),
		Latency:            NewLatencyRecorder(1024),
	}
}

// 记录API调用
func (h *Stats) RecordAPICall(apiName string) {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()

	if h.apiCallCounts == nil {
		h.apiCallCounts = make(map[string]uint64)
	}
	h.apiCallCounts[apiName]++
}

// RecordInstruction 记录一条指令的执行结果
func (h *Stats) RecordInstruction(status string) {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()

	if h.instructionResults == nil {
		h.instructionResults = make(map[string]uint64)
	}
	h.instructionResults[status]++
}

// 获取API调用统计
func (h *Stats) GetAPICallStats() map[string]uint64 {
	h.statsLock.RLock()
	defer h.statsLock.RUnlock()

	// 复制统计数据
	stats := make(map[string]uint64)
	for api, count := range h.apiCallCounts {
		stats[api] = count
	}
	return stats
}

// GetInstructionStats 指令结果统计副本
func (h *Stats) GetInstructionStats() map[string]uint64 {
	h.statsLock.RLock()
	defer h.statsLock.RUnlock()

	out := make(map[string]uint64, len(h.instructionResults))
	for k, v := range h.instructionResults {
		out[k] = v
	}
	return out
}

// Uptime 自创建以来的运行时长
func (h *Stats) Uptime() time.Duration {
	return time.Since(h.startedAt).Truncate(time.Second)
}
