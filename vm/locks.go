package vm

import (
	"sort"
	"sync"

	"vault/types"

	"github.com/spaolacci/murmur3"
)

// LockTable 按账户地址分片的写锁
// 写同一批账户的指令串行执行，不相交的指令并行
type LockTable struct {
	stripes []sync.Mutex
}

// NewLockTable n<=0 时退化为单把锁
func NewLockTable(n int) *LockTable {
	if n <= 0 {
		n = 1
	}
	return &LockTable{stripes: make([]sync.Mutex, n)}
}

func (t *LockTable) stripe(addr types.Address) int {
	h := murmur3.New64()
	h.Write(addr[:])
	return int(h.Sum64() % uint64(len(t.stripes)))
}

// Lock 锁住 addrs 对应的所有分片，返回解锁函数
// 分片按下标升序获取，两条指令互相等待不会死锁
func (t *LockTable) Lock(addrs []types.Address) func() {
	seen := make(map[int]struct{}, len(addrs))
	idx := make([]int, 0, len(addrs))
	for _, a := range addrs {
		s := t.stripe(a)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		idx = append(idx, s)
	}
	sort.Ints(idx)

	for _, i := range idx {
		t.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			t.stripes[idx[j]].Unlock()
		}
	}
}
