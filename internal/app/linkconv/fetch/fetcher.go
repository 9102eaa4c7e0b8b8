// Package fetch 是解析链路里的网络部分：跟随跳转、抓页面并收集候选链接。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/platform/metrics"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	DefaultMaxBody      = 1 << 20
	DefaultMaxRedirects = 5

	maxLinks = 200
)

var ErrBadStatus = errors.New("unexpected http status")

var tracer = otel.Tracer("repfinds.local/linkconv/fetch")

type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBody      int64
	MaxRedirects int
	// Transport 为空时使用 http.DefaultTransport 的副本，测试里可以替换
	Transport http.RoundTripper
}

// HTTPFetcher 实现 linkconv.Fetcher。每次调用单独受 Timeout 限制，不重试。
type HTTPFetcher struct {
	client *http.Client
	opts   Options
}

var _ linkconv.Fetcher = (*HTTPFetcher)(nil)

func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	maxRedirects := opts.MaxRedirects
	return &HTTPFetcher{
		opts: opts,
		client: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Timeout:   opts.Timeout,
			// 超过上限就停在最后一个响应上，返回当时的地址
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FollowRedirects 用 HEAD 跟随跳转，返回最终地址。站点不支持 HEAD（405/501）时改用 GET。
func (f *HTTPFetcher) FollowRedirects(ctx context.Context, rawURL string) (final string, err error) {
	ctx, span := tracer.Start(ctx, "linkconv.fetch.follow")
	start := time.Now()
	defer func() { observe(span, "follow", start, err) }()

	resp, err := f.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp.Body.Close()
		if resp, err = f.do(ctx, http.MethodGet, rawURL); err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	final = resp.Request.URL.String()
	span.SetAttributes(attribute.String("http.final_url", final))
	return final, nil
}

// Probe GET 页面，读取最多 MaxBody 字节，并收集页面里可能指向商品的链接。
func (f *HTTPFetcher) Probe(ctx context.Context, rawURL string) (page linkconv.Page, err error) {
	ctx, span := tracer.Start(ctx, "linkconv.fetch.probe")
	start := time.Now()
	defer func() { observe(span, "probe", start, err) }()

	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return linkconv.Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return linkconv.Page{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBody))
	if err != nil {
		return linkconv.Page{}, fmt.Errorf("read body: %w", err)
	}
	page = linkconv.Page{
		FinalURL: resp.Request.URL.String(),
		Body:     string(body),
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		page.Links = HarvestLinks(resp.Request.URL, page.Body)
	}
	return page, nil
}

func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

func observe(span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.FetchTotal.WithLabelValues(op, outcome).Inc()
	metrics.FetchDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	span.End()
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "text/plain")
}

var (
	jsLocationPattern     = regexp.MustCompile(`(?is)(?:window\.|self\.|top\.|document\.)?location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`)
	jsLocationCallPattern = regexp.MustCompile(`(?is)location\.(?:replace|assign)\(\s*['"]([^'"]+)['"]\s*\)`)
	refreshURLPattern     = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"\s>]+)`)
)

// HarvestLinks 按可信度收集候选链接：canonical、og:url、meta refresh、脚本跳转、最后是普通 a 标签。
// 相对地址按 base 解析，结果去重且数量有上限。
func HarvestLinks(base *url.URL, html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(ref string) {
		if len(out) >= maxLinks {
			return
		}
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "mailto:") {
			return
		}
		u, err := url.Parse(ref)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		s := u.String()
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	doc.Find(`link[rel="canonical"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	doc.Find(`meta[property="og:url"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		if m := refreshURLPattern.FindStringSubmatch(s.AttrOr("content", "")); m != nil {
			add(m[1])
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, m := range jsLocationPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
		for _, m := range jsLocationCallPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	return out
}
