package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"repfinds.local/gee"
	"repfinds.local/gee/middleware"
	"repfinds.local/internal/platform/auth"
	"repfinds.local/internal/platform/ratelimit"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct", "203.0.113.5:1234", nil, "203.0.113.5"},
		{"untrusted proxy header ignored", "203.0.113.5:1234", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.5"},
		{"cloudflare via local caddy", "127.0.0.1:80", map[string]string{"CF-Connecting-IP": "198.51.100.7"}, "198.51.100.7"},
		{"xff first hop", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "198.51.100.8, 10.0.0.1"}, "198.51.100.8"},
		{"x-real-ip", "192.168.1.2:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"bad header falls back", "172.17.0.1:80", map[string]string{"X-Forwarded-For": "garbage"}, "172.17.0.1"},
		{"no port", "203.0.113.6", nil, "203.0.113.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	ts, err := auth.NewHS256Service("secret", "issuer", time.Hour)
	if err != nil {
		t.Fatalf("NewHS256Service: %v", err)
	}

	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID())
	admin := r.Group("/api/v1/admin")
	admin.Use(AdminOnly(ts)...)
	admin.GET("/whoami", func(ctx *gee.Context) {
		id, _ := auth.GetIdentity(ctx.Context())
		ctx.JSON(http.StatusOK, gee.H{"subject": id.Subject})
	})

	adminTok, _ := ts.Sign("ops", auth.RoleAdmin)
	viewerTok, _ := ts.Sign("bob", "viewer")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewerTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body=%s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	r := gee.New()
	r.GET("/t", RateLimit(nil, Rule{Prefix: "t", Limit: 1, Window: time.Second}), func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_Redis(t *testing.T) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			redisDB = n
		}
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD"), DB: redisDB})
	t.Cleanup(func() { _ = client.Close() })
	pingCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("skip: redis not available at %s: %v", redisAddr, err)
	}

	rule := Rule{Prefix: "test-" + strconv.FormatInt(time.Now().UnixNano(), 36), Limit: 2, Window: 2 * time.Second}
	r := gee.New()
	r.GET("/t", RateLimit(ratelimit.NewLimiter(client), rule), func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	doReq := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/t", nil)
		req.RemoteAddr = "127.0.0.1:1234"
		req.Header.Set("CF-Connecting-IP", "203.0.113.10")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < rule.Limit; i++ {
		if rec := doReq(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}
	rec := doReq()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: got %d, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}
