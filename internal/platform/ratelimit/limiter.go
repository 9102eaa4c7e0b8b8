package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 滑动窗口：有序集合里每个请求一个 member，score 为毫秒时间戳。
// 超限时撤回本次 member，并按最早一条记录算出还要等多久。
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)
redis.call("ZADD", key, now, member)
local count = redis.call("ZCARD", key)
redis.call("PEXPIRE", key, window)

if count <= limit then
  return {1, 0, limit - count}
end

redis.call("ZREM", key, member)

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if oldest[2] ~= nil then
  local retryAfter = (tonumber(oldest[2]) + window) - now
  if retryAfter < 0 then retryAfter = 0 end
  return {0, retryAfter, 0}
end
return {0, window, 0}
`)

// Decision 一次限流判定的结果
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // 仅在 Allowed 为 false 时有意义
}

type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow member 必须每次请求唯一，否则 ZADD 会覆盖
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration, member string) (Decision, error) {
	res, err := slidingWindow.Run(ctx, l.client, []string{key},
		time.Now().UnixMilli(), window.Milliseconds(), limit, member).Result()
	if err != nil {
		return Decision{}, err
	}
	arr, ok := res.([]any)
	if !ok || len(arr) < 3 {
		return Decision{}, fmt.Errorf("unexpected redis eval result: %T %v", res, res)
	}
	return Decision{
		Allowed:    toInt64(arr[0]) == 1,
		RetryAfter: time.Duration(toInt64(arr[1])) * time.Millisecond,
		Remaining:  int(toInt64(arr[2])),
	}, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
