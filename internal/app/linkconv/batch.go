package linkconv

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// LinkConverter 是 ConvertBatch 需要的能力，Converter 和带缓存的 CachedResolver 都满足。
type LinkConverter interface {
	ConvertLink(ctx context.Context, input, preferredAgent string) ConversionResult
}

// ConvertBatch 并发转换多条输入，结果顺序与输入一致。
// 单条失败只体现在它自己的结果里，不影响其它条目；limit <= 0 表示不限制并发。
func ConvertBatch(ctx context.Context, conv LinkConverter, inputs []string, preferredAgent string, limit int) []ConversionResult {
	results := make([]ConversionResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = conv.ConvertLink(gctx, in, preferredAgent)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
