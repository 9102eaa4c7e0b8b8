package httpapi

import (
	"net/http"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
)

type LinkResponse struct {
	Link string `json:"link"`
}

// productParams 读 platform 和 id，不合法时已写入 400
func productParams(ctx *gee.Context) (linkconv.Marketplace, string, bool) {
	mp := linkconv.ParseMarketplace(ctx.Query("platform"))
	if !mp.Valid() {
		ctx.AbortWithError(http.StatusBadRequest, "unknown platform")
		return "", "", false
	}
	pid := linkconv.SanitizeProductID(ctx.Query("id"))
	if pid == "" {
		ctx.AbortWithError(http.StatusBadRequest, "invalid product id")
		return "", "", false
	}
	return mp, pid, true
}

func NewAgentsHandler(gen *linkconv.Generator) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.JSON(http.StatusOK, gen.Agents())
	}
}

// NewAgentLinkHandler GET /api/v1/agents/:agent/link?platform=&id=&raw=&code=
// code 非空时返回本服务的短链形式
func NewAgentLinkHandler(gen *linkconv.Generator) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		agent := ctx.Param("agent")
		if !linkconv.KnownAgent(agent) {
			ctx.AbortWithError(http.StatusNotFound, "unknown agent")
			return
		}
		mp, pid, ok := productParams(ctx)
		if !ok {
			return
		}
		link, ok := gen.GenerateAgentLink(agent, string(mp), pid, ctx.Query("raw"), ctx.Query("code"))
		if !ok {
			ctx.AbortWithError(http.StatusNotFound, "unknown agent")
			return
		}
		ctx.JSON(http.StatusOK, LinkResponse{Link: link})
	}
}

func NewAllLinksHandler(gen *linkconv.Generator) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		mp, pid, ok := productParams(ctx)
		if !ok {
			return
		}
		ctx.JSON(http.StatusOK, gen.AllAgentLinks(string(mp), pid, ""))
	}
}

func NewMarketplaceLinkHandler() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		mp, pid, ok := productParams(ctx)
		if !ok {
			return
		}
		ctx.JSON(http.StatusOK, LinkResponse{Link: linkconv.BuildMarketplaceLink(string(mp), pid)})
	}
}
