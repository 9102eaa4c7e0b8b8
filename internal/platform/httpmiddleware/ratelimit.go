package httpmiddleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"repfinds.local/gee"
	"repfinds.local/internal/platform/ratelimit"
)

// ClientIP 只有请求来自可信代理（本机、内网、docker bridge）时才看转发头，
// 否则客户端可以伪造 X-Forwarded-For 绕过按 IP 的限流。
func ClientIP(req *http.Request) string {
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteHost = req.RemoteAddr
	}
	remoteIP := net.ParseIP(remoteHost)
	if remoteIP == nil || !isTrustedProxy(remoteIP) {
		return remoteHost
	}

	// Cloudflare -> Caddy -> app
	if cf := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); net.ParseIP(cf) != nil {
		return cf
	}
	// 第一个是原始客户端，后面是经过的代理
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xrip := strings.TrimSpace(req.Header.Get("X-Real-IP")); net.ParseIP(xrip) != nil {
		return xrip
	}
	return remoteHost
}

func isTrustedProxy(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	// RFC1918 和 IPv6 ULA
	return ip.IsPrivate()
}

// Rule 一条限流规则，Prefix 区分不同接口的计数
type Rule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

func (r Rule) key(ip string) string {
	return "rl:" + r.Prefix + ":" + ip
}

// RateLimit limiter 为 nil 时不限流；Redis 出错时放行
func RateLimit(limiter *ratelimit.Limiter, rule Rule) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if limiter == nil {
			ctx.Next()
			return
		}
		rlCtx, cancel := context.WithTimeout(ctx.Req.Context(), 50*time.Millisecond)
		defer cancel()
		d, err := limiter.Allow(rlCtx, rule.key(ClientIP(ctx.Req)), rule.Limit, rule.Window, uuid.NewString())
		if err != nil {
			slog.Error("rate limit check failed", "prefix", rule.Prefix, "err", err)
			ctx.Next()
			return
		}
		ctx.SetHeader("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		ctx.SetHeader("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			if d.RetryAfter > 0 {
				// Retry-After 单位是秒，向上取整
				secs := int64((d.RetryAfter + time.Second - 1) / time.Second)
				ctx.SetHeader("Retry-After", strconv.FormatInt(secs, 10))
			}
			ctx.AbortWithError(http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		ctx.Next()
	}
}
