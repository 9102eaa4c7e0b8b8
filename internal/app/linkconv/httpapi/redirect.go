package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/app/linkconv/stats"
	"repfinds.local/internal/platform/httpmiddleware"
	"repfinds.local/internal/platform/metrics"
)

// NewAgentRedirectHandler /:agent/:platform/:pid[/:code] 302 到代购站商品页。
// code 替换模板里默认的邀请码。
func NewAgentRedirectHandler(gen *linkconv.Generator, collector stats.Collector) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		agent := strings.ToLower(ctx.Param("agent"))
		if !linkconv.KnownAgent(agent) {
			ctx.AbortWithError(http.StatusNotFound, "unknown agent")
			return
		}
		mp := linkconv.ParseMarketplace(ctx.Param("platform"))
		pid := linkconv.SanitizeProductID(ctx.Param("pid"))
		if !mp.Valid() || pid == "" {
			ctx.AbortWithError(http.StatusNotFound, "unknown product")
			return
		}
		code := ctx.Param("code")
		redirect(ctx, gen, collector, agent, mp, pid, code)
	}
}

// NewCompactRedirectHandler /s/:code
func NewCompactRedirectHandler(gen *linkconv.Generator, codec *linkconv.CompactCodec, collector stats.Collector) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if codec == nil {
			ctx.AbortWithError(http.StatusNotFound, "not found")
			return
		}
		target, err := codec.Decode(ctx.Param("code"))
		if err != nil {
			if errors.Is(err, linkconv.ErrInvalidCompact) {
				ctx.AbortWithError(http.StatusNotFound, "unknown code")
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "decode failed")
			return
		}
		redirect(ctx, gen, collector, target.Agent, target.Marketplace, target.ProductID, "")
	}
}

func redirect(ctx *gee.Context, gen *linkconv.Generator, collector stats.Collector, agent string, mp linkconv.Marketplace, pid, code string) {
	link, ok := gen.TemplateLink(agent, string(mp), pid, "", code)
	if !ok {
		ctx.AbortWithError(http.StatusNotFound, "unknown agent")
		return
	}
	metrics.AgentRedirects.WithLabelValues(agent).Inc()

	collector.Collect(stats.Click(stats.ClickEvent{
		Agent:     agent,
		Platform:  string(mp),
		ProductID: pid,
		Code:      code,
		ClickedAt: time.Now(),
		IP:        httpmiddleware.ClientIP(ctx.Req),
		UserAgent: ctx.Req.UserAgent(),
		Referer:   ctx.Req.Referer(),
	}))

	ctx.Redirect(http.StatusFound, link)
}
