package cache

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"repfinds.local/internal/app/linkconv"
)

// CachedResolver 在 Converter 前面加一层缓存。同一输入的并发请求只解析一次。
type CachedResolver struct {
	conv  *linkconv.Converter
	cache *ResultCache
	group singleflight.Group
}

var _ linkconv.LinkConverter = (*CachedResolver)(nil)

func NewCachedResolver(conv *linkconv.Converter, cache *ResultCache) *CachedResolver {
	return &CachedResolver{conv: conv, cache: cache}
}

func (r *CachedResolver) Converter() *linkconv.Converter { return r.conv }

// Resolve Redis 出错时退化为直接解析
func (r *CachedResolver) Resolve(ctx context.Context, input string) linkconv.ConversionResult {
	key := Key(input)
	res, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("linkconv cache: get failed", "key", key, "err", err)
	}
	if ok {
		return res
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		res := r.conv.Resolve(ctx, input)
		// 调用方已经取消时结果可能是半途而废的，不缓存
		if ctx.Err() != nil {
			return res, nil
		}
		if err := r.cache.Set(context.WithoutCancel(ctx), key, res); err != nil {
			slog.Warn("linkconv cache: set failed", "key", key, "err", err)
		}
		return res, nil
	})
	return v.(linkconv.ConversionResult)
}

func (r *CachedResolver) ConvertLink(ctx context.Context, input, preferredAgent string) linkconv.ConversionResult {
	return r.conv.ApplyAgent(r.Resolve(ctx, input), preferredAgent)
}

func (r *CachedResolver) Close() {
	r.cache.Close()
}
