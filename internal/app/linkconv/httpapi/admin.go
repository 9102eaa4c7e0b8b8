package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
)

type ResolveRequest struct {
	Marketplace string `json:"marketplace,omitempty"`
	Item        string `json:"item"`
}

// NewResolveHandler 后台录入用，解析失败返回 422 和原因
func NewResolveHandler(conv *linkconv.Converter) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req ResolveRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		res, err := conv.ResolveMarketplaceAndID(req.Marketplace, req.Item)
		if err != nil {
			if errors.Is(err, linkconv.ErrResolveFromURL) || errors.Is(err, linkconv.ErrResolveFromInput) {
				ctx.AbortWithError(http.StatusUnprocessableEntity, err.Error())
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "resolve failed")
			return
		}
		ctx.JSON(http.StatusOK, res)
	}
}

const maxStatsWindow = 90 * 24 * time.Hour

// NewStatsHandler GET /api/v1/admin/stats?since=24h
func NewStatsHandler(reader StatsReader) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if reader == nil {
			ctx.AbortWithError(http.StatusServiceUnavailable, "stats disabled")
			return
		}
		window, err := time.ParseDuration(ctx.DefaultQuery("since", "24h"))
		if err != nil || window <= 0 || window > maxStatsWindow {
			ctx.AbortWithError(http.StatusBadRequest, "invalid since")
			return
		}
		summary, err := reader.AgentSummary(ctx.Context(), time.Now().Add(-window))
		if err != nil {
			slog.Error("agent summary failed", "err", err)
			ctx.AbortWithError(http.StatusInternalServerError, "stats query failed")
			return
		}
		ctx.JSON(http.StatusOK, summary)
	}
}
