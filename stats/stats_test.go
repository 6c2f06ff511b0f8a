package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAPICallConcurrent(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordAPICall("HandleStatus")
			s.RecordInstruction("SUCCEED")
		}()
	}
	wg.Wait()
	s.RecordInstruction("FAILED")

	assert.Equal(t, uint64(50), s.GetAPICallStats()["HandleStatus"])
	res := s.GetInstructionStats()
	assert.Equal(t, uint64(50), res["SUCCEED"])
	assert.Equal(t, uint64(1), res["FAILED"])
}

func TestSnapshotIsCopy(t *testing.T) {
	var s Stats
	s.RecordAPICall("a")
	snap := s.GetAPICallStats()
	snap["a"] = 100
	assert.Equal(t, uint64(1), s.GetAPICallStats()["a"])
}

func TestLatencyPercentiles(t *testing.T) {
	r := NewLatencyRecorder(4)
	for i := 1; i <= 6; i++ {
		r.Record("vault.deposit", time.Duration(i)*time.Millisecond)
	}
	r.Record("", time.Second)

	snap := r.Snapshot()
	assert.Len(t, snap, 1)
	s := snap["vault.deposit"]
	// 环形缓冲只保留最近 4 个样本：3,4,5,6ms
	assert.Equal(t, uint64(6), s.Count)
	assert.Equal(t, 4*time.Millisecond, s.P50)
	assert.Equal(t, 5*time.Millisecond, s.P95)
	assert.Equal(t, 6*time.Millisecond, s.Max)

	var nilRec *LatencyRecorder
	nilRec.Record("x", time.Second)
	assert.Nil(t, nilRec.Snapshot())
}
