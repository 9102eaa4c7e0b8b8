package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Doorkeeper 记录见过的缓存 key。第一次出现的输入只进本地缓存，
// 第二次出现才写 Redis，避免一次性输入把 Redis 撑满。
type Doorkeeper struct {
	filter *bloom.BloomFilter
	mu     sync.Mutex
}

// NewDoorkeeper
// expectedItems: 预期的不同输入数量
// falsePositiveRate: 误判率，建议 0.01
func NewDoorkeeper(expectedItems uint, falsePositiveRate float64) *Doorkeeper {
	return &Doorkeeper{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

// Admit 返回 key 之前是否（可能）出现过，并把它记下
func (d *Doorkeeper) Admit(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.TestAndAddString(key)
}

// Count 已记录的 key 数量（估算）
func (d *Doorkeeper) Count() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.ApproximatedSize()
}
