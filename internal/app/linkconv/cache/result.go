package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/platform/metrics"
)

const keyPrefix = "lc:"

// Key 缓存 key 取清洗后输入的 sha1，输入本身可能很长
func Key(input string) string {
	sum := sha1.Sum([]byte(linkconv.SanitizeInput(input)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// ResultCache 缓存与 agent 无关的解析结果。L1 本地，L2 Redis。
// 失败结果也缓存（负缓存），TTL 短一些，避免同一个坏链接反复联网。
type ResultCache struct {
	client   *redis.Client // nil 时只用本地缓存
	local    *LocalCache
	door     *Doorkeeper // nil 时所有结果都写 Redis
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewResultCache(client *redis.Client, local *LocalCache, door *Doorkeeper, ttl, emptyTTL time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if emptyTTL <= 0 {
		emptyTTL = 30 * time.Second
	}
	return &ResultCache{
		client:   client,
		local:    local,
		door:     door,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

func (c *ResultCache) Get(ctx context.Context, key string) (linkconv.ConversionResult, bool, error) {
	// L1
	if c.local != nil {
		if raw, ok := c.local.Get(key); ok {
			if res, ok := decode(raw); ok {
				metrics.CacheOperations.WithLabelValues("l1", hitLabel(res)).Inc()
				return res, true, nil
			}
			c.local.Del(key)
		}
	}
	if c.client == nil {
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
		return linkconv.ConversionResult{}, false, nil
	}

	// L2
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return linkconv.ConversionResult{}, false, nil
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		return linkconv.ConversionResult{}, false, err
	}
	res, ok := decode(raw)
	if !ok {
		slog.Warn("linkconv cache: drop corrupt entry", "key", key)
		_ = c.client.Del(ctx, key).Err()
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return linkconv.ConversionResult{}, false, nil
	}
	metrics.CacheOperations.WithLabelValues("l2", hitLabel(res)).Inc()

	// 回填本地缓存
	if c.local != nil {
		c.local.Set(key, raw, negative(res))
	}
	return res, true, nil
}

// Set panic 产生的结果不缓存。AgentLink 依赖请求参数，存之前清掉。
func (c *ResultCache) Set(ctx context.Context, key string, res linkconv.ConversionResult) error {
	if res.Outcome() == "error" {
		return nil
	}
	res.AgentLink = ""
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	neg := negative(res)
	if c.local != nil {
		c.local.Set(key, raw, neg)
	}
	if c.client == nil {
		return nil
	}
	if c.door != nil && !c.door.Admit(key) {
		metrics.CacheOperations.WithLabelValues("l2", "skip").Inc()
		return nil
	}
	ttl := c.ttl
	if neg {
		ttl = c.emptyTTL
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *ResultCache) Delete(ctx context.Context, key string) error {
	if c.local != nil {
		c.local.Del(key)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Close 关闭本地缓存，Redis 连接由调用方管理
func (c *ResultCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}

// 降级结果来自一次临时的跳转，和失败结果一样短期缓存
func negative(res linkconv.ConversionResult) bool {
	return !res.IsValid || res.Degraded
}

func hitLabel(res linkconv.ConversionResult) string {
	if negative(res) {
		return "hit_negative"
	}
	return "hit"
}

func decode(raw []byte) (linkconv.ConversionResult, bool) {
	var res linkconv.ConversionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return linkconv.ConversionResult{}, false
	}
	return res, true
}
