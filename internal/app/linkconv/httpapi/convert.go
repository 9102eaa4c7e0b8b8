package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/app/linkconv/stats"
)

type ConvertRequest struct {
	Link  string `json:"link"`
	Agent string `json:"agent,omitempty"`
}

type BatchRequest struct {
	Links []string `json:"links"`
	Agent string   `json:"agent,omitempty"`
}

type BatchResponse struct {
	BatchID string                      `json:"batchId"`
	Results []linkconv.ConversionResult `json:"results"`
}

func (d Deps) convertCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if d.ConvertTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d.ConvertTimeout)
}

func (d Deps) convertOne(ctx *gee.Context, link, agent string) linkconv.ConversionResult {
	cctx, cancel := d.convertCtx(ctx.Context())
	defer cancel()
	res := d.Links.ConvertLink(cctx, link, agent)
	d.collector().Collect(stats.ConversionOf(link, agent, "", res, time.Now()))
	return res
}

// NewLegacyConvertHandler GET /convert?link=&agent=
// 解析失败也返回 200，错误放在结果的 error 字段里，与旧前端约定一致。
func NewLegacyConvertHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		link := strings.TrimSpace(ctx.Query("link"))
		if link == "" {
			ctx.AbortWithError(http.StatusBadRequest, "link is required")
			return
		}
		ctx.JSON(http.StatusOK, d.convertOne(ctx, link, ctx.Query("agent")))
	}
}

func NewConvertHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req ConvertRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		if strings.TrimSpace(req.Link) == "" {
			ctx.AbortWithError(http.StatusBadRequest, "link is required")
			return
		}
		ctx.JSON(http.StatusOK, d.convertOne(ctx, req.Link, req.Agent))
	}
}

// NewBatchHandler 每条输入单独受 ConvertTimeout 限制，结果顺序与输入一致
func NewBatchHandler(d Deps) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req BatchRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		if len(req.Links) == 0 {
			ctx.AbortWithError(http.StatusBadRequest, "links is required")
			return
		}
		if d.BatchMaxLinks > 0 && len(req.Links) > d.BatchMaxLinks {
			ctx.AbortWithError(http.StatusBadRequest, "too many links")
			return
		}

		batchID := uuid.NewString()
		results := linkconv.ConvertBatch(ctx.Context(), timeoutConverter{d}, req.Links, req.Agent, d.BatchConcurrency)

		now := time.Now()
		c := d.collector()
		for i, res := range results {
			c.Collect(stats.ConversionOf(req.Links[i], req.Agent, batchID, res, now))
		}
		ctx.JSON(http.StatusOK, BatchResponse{BatchID: batchID, Results: results})
	}
}

// timeoutConverter 给批量里的每一条单独加超时
type timeoutConverter struct{ d Deps }

func (t timeoutConverter) ConvertLink(ctx context.Context, input, agent string) linkconv.ConversionResult {
	cctx, cancel := t.d.convertCtx(ctx)
	defer cancel()
	return t.d.Links.ConvertLink(cctx, input, agent)
}
