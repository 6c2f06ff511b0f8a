package stats

import (
	"sort"
	"sync"
	"time"
)

// LatencySummary 单类指令的执行耗时分位
type LatencySummary struct {
	Count uint64        `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

type latencyMetric struct {
	samples []int64 // 纳秒，环形缓冲区
	nextIdx int
	filled  bool
	count   uint64
	maxNs   int64
}

// LatencyRecorder 按名字（指令 kind）分桶的固定容量耗时记录器
type LatencyRecorder struct {
	mu       sync.Mutex
	capacity int
	metrics  map[string]*latencyMetric
}

func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LatencyRecorder{
		capacity: capacity,
		metrics:  make(map[string]*latencyMetric),
	}
}

// Since 记录从 start 到现在的耗时
func (r *LatencyRecorder) Since(name string, start time.Time) {
	r.Record(name, time.Since(start))
}

func (r *LatencyRecorder) Record(name string, d time.Duration) {
	if r == nil || name == "" {
		return
	}
	ns := d.Nanoseconds()
	if ns < 0 {
		ns = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[name]
	if !ok {
		m = &latencyMetric{samples: make([]int64, r.capacity)}
		r.metrics[name] = m
	}
	m.samples[m.nextIdx] = ns
	m.nextIdx = (m.nextIdx + 1) % len(m.samples)
	if m.nextIdx == 0 {
		m.filled = true
	}
	m.count++
	if ns > m.maxNs {
		m.maxNs = ns
	}
}

// Snapshot 当前窗口内的分位统计，不清空样本
func (r *LatencyRecorder) Snapshot() map[string]LatencySummary {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]LatencySummary, len(r.metrics))
	for name, m := range r.metrics {
		n := m.nextIdx
		if m.filled {
			n = len(m.samples)
		}
		if n == 0 {
			continue
		}
		values := make([]int64, n)
		copy(values, m.samples[:n])
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

		result[name] = LatencySummary{
			Count: m.count,
			P50:   time.Duration(percentile(values, 0.50)),
			P95:   time.Duration(percentile(values, 0.95)),
			P99:   time.Duration(percentile(values, 0.99)),
			Max:   time.Duration(m.maxNs),
		}
	}
	return result
}

func percentile(sorted []int64, p float64) int64 {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
