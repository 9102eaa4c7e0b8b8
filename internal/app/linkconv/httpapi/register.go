// Package httpapi 把 linkconv 暴露成 HTTP 接口，只做参数校验、错误映射和响应格式。
package httpapi

import (
	"context"
	"net/http"
	"time"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/app/linkconv/repo"
	"repfinds.local/internal/app/linkconv/stats"
	"repfinds.local/internal/platform/auth"
	"repfinds.local/internal/platform/httpmiddleware"
	"repfinds.local/internal/platform/ratelimit"
)

// StatsReader 管理接口读统计用，统计关闭时为 nil
type StatsReader interface {
	AgentSummary(ctx context.Context, since time.Time) (*repo.Summary, error)
}

type Deps struct {
	// Links 可以是 *linkconv.Converter 也可以是带缓存的 resolver
	Links     linkconv.LinkConverter
	Converter *linkconv.Converter
	Codec     *linkconv.CompactCodec
	Collector stats.Collector
	Stats     StatsReader
	Tokens    auth.TokenService
	Limiter   *ratelimit.Limiter

	ConvertRule      httpmiddleware.Rule
	ConvertTimeout   time.Duration
	BatchMaxLinks    int
	BatchConcurrency int
}

func (d Deps) collector() stats.Collector {
	if d.Collector == nil {
		return stats.Discard{}
	}
	return d.Collector
}

// RegisterAPIRoutes 挂在 /api/v1 分组下
func RegisterAPIRoutes(api *gee.RouterGroup, d Deps) {
	limit := httpmiddleware.RateLimit(d.Limiter, d.ConvertRule)

	api.POST("/convert", limit, NewConvertHandler(d))
	api.POST("/convert/batch", limit, NewBatchHandler(d))

	gen := d.Converter.Generator()
	api.GET("/agents", NewAgentsHandler(gen))
	api.GET("/agents/:agent/link", NewAgentLinkHandler(gen))
	api.GET("/links", NewAllLinksHandler(gen))
	api.GET("/marketplace/link", NewMarketplaceLinkHandler())

	admin := api.Group("/admin")
	admin.Use(httpmiddleware.AdminOnly(d.Tokens)...)
	admin.POST("/resolve", NewResolveHandler(d.Converter))
	admin.GET("/stats", NewStatsHandler(d.Stats))
}

// RegisterPublicRoutes 挂在根路由：兼容旧前端的 /convert、短代购链接跳转和健康检查。
// 静态路由优先于 /:agent/:platform/:pid 匹配。
func RegisterPublicRoutes(engine *gee.Engine, d Deps) {
	engine.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	engine.GET("/convert", httpmiddleware.RateLimit(d.Limiter, d.ConvertRule), NewLegacyConvertHandler(d))

	gen := d.Converter.Generator()
	agentRedirect := NewAgentRedirectHandler(gen, d.collector())
	for _, pattern := range []string{"/:agent/:platform/:pid", "/:agent/:platform/:pid/:code"} {
		engine.GET(pattern, agentRedirect)
		engine.HEAD(pattern, agentRedirect)
	}
	compact := NewCompactRedirectHandler(gen, d.Codec, d.collector())
	engine.GET("/s/:code", compact)
	engine.HEAD("/s/:code", compact)
}
