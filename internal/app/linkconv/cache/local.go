package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的进程内缓存，值是序列化后的结果
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache
// maxItems: 最大条目数
// maxCost: 最大占用（字节），按值的长度计费
func NewLocalCache(maxItems int64, maxCost int64, ttl, emptyTTL time.Duration) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if emptyTTL <= 0 {
		emptyTTL = 10 * time.Second
	}
	return &LocalCache{cache: cache, ttl: ttl, emptyTTL: emptyTTL}, nil
}

func (l *LocalCache) Get(key string) ([]byte, bool) {
	if v, ok := l.cache.Get(key); ok {
		return v.([]byte), true
	}
	return nil, false
}

// Set negative 为 true 时用较短的 TTL
func (l *LocalCache) Set(key string, val []byte, negative bool) {
	ttl := l.ttl
	if negative {
		ttl = l.emptyTTL
	}
	l.cache.SetWithTTL(key, val, int64(len(val)), ttl)
}

func (l *LocalCache) Del(key string) {
	l.cache.Del(key)
}

// Wait 等待缓冲区里的写入生效，测试用
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
