package linkconv

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"repfinds.local/internal/platform/metrics"
)

const panicDomain = "error"

// Page 是一次 HTML 探测的结果。Links 是页面里能找到的候选链接（canonical、og:url、a[href] 等）。
type Page struct {
	FinalURL string
	Body     string
	Links    []string
}

// Fetcher 是解析过程中唯一的网络依赖，每次调用自带超时。
type Fetcher interface {
	FollowRedirects(ctx context.Context, rawURL string) (string, error)
	Probe(ctx context.Context, rawURL string) (Page, error)
}

var tracer = otel.Tracer("repfinds.local/linkconv")

// Converter 把任意输入解析成平台规范链接。无内部可变状态，可并发调用。
type Converter struct {
	gen      *Generator
	detector *Detector
	fetcher  Fetcher
}

// NewConverter fetcher 可以为 nil，此时跳过所有需要联网的步骤。
func NewConverter(c *Catalog, f Fetcher) *Converter {
	return &Converter{
		gen:      NewGenerator(c),
		detector: NewDetector(c),
		fetcher:  f,
	}
}

func (c *Converter) Generator() *Generator { return c.gen }

// ConvertLink = Resolve + ApplyAgent。
func (c *Converter) ConvertLink(ctx context.Context, input, preferredAgent string) ConversionResult {
	return c.ApplyAgent(c.Resolve(ctx, input), preferredAgent)
}

// ApplyAgent 为有效结果生成 preferredAgent 的链接。未知 agent 或无效结果不带 AgentLink。
func (c *Converter) ApplyAgent(res ConversionResult, preferredAgent string) ConversionResult {
	res.AgentLink = ""
	if preferredAgent == "" || !res.IsValid || !res.Marketplace.Valid() || res.ProductID == "" {
		return res
	}
	if link, ok := c.gen.GenerateAgentLink(preferredAgent, string(res.Marketplace), res.ProductID, res.RawLink, ""); ok {
		res.AgentLink = link
	}
	return res
}

// Resolve 与 agent 无关的解析部分，结果可以缓存。任何 panic 都会被转成失败结果。
func (c *Converter) Resolve(ctx context.Context, input string) (res ConversionResult) {
	ctx, span := tracer.Start(ctx, "linkconv.resolve")
	step := "panic"
	defer func() {
		if r := recover(); r != nil {
			slog.Error("linkconv: resolve panic", "panic", r)
			res = ConversionResult{Error: fmt.Sprint(r), OriginalDomain: panicDomain}
			span.SetStatus(codes.Error, "panic")
		}
		metrics.Conversions.WithLabelValues(res.Outcome(), step).Inc()
		span.SetAttributes(
			attribute.String("linkconv.outcome", res.Outcome()),
			attribute.String("linkconv.step", step),
			attribute.String("linkconv.marketplace", string(res.Marketplace)),
		)
		span.End()
	}()
	res, step = c.resolve(ctx, input)
	return res
}

func (c *Converter) resolve(ctx context.Context, input string) (ConversionResult, string) {
	// 1-2
	sanitized := SanitizeInput(input)
	if !IsValidURL(sanitized) {
		if u, ok := ExtractFirstURL(sanitized); ok {
			sanitized = u
		}
	}
	if !IsValidURL(sanitized) {
		return invalidResult(ErrInvalidURL, nil), "validate"
	}

	var errs *multierror.Error
	working := sanitized
	candidates := []string{sanitized}

	// 3-4
	if inner, ok := UnwrapQueryParam(working); ok {
		candidates = append(candidates, working)
		working = inner
	} else if inner, ok := UnwrapInnerURLAnywhere(working); ok {
		candidates = append(candidates, working)
		working = inner
	}

	// 5
	if c.fetcher != nil && c.detector.IsLikelyShortLink(working) {
		resolved, err := c.fetcher.FollowRedirects(ctx, working)
		switch {
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("resolve short link %s: %w", working, err))
		case IsValidURL(resolved):
			candidates = append(candidates, resolved)
			working = resolved
		}
	}

	// 6
	working = HandleSPAHash(working)
	info := DetectAgent(sanitized)

	// 7
	if IsNonProductLink(working) {
		return invalidResult(ErrNotProduct, &info), "reject"
	}

	// 8
	candidates = append(candidates, working)
	working = NormalizeAgentURLToRaw(working)
	if pid, mp := ExtractIDAndMarketplace(working); pid != "" && mp.Valid() {
		if res, ok := validResult(mp, pid, info); ok {
			return res, "extract"
		}
	}

	// 9
	if pid, mp, ok := ExtractFromText(working); ok {
		if res, ok := validResult(mp, pid, info); ok {
			return res, "text"
		}
	}

	if c.fetcher == nil {
		return invalidResult(ErrUnresolvable, &info), "exhausted"
	}

	// 10
	for _, cand := range dedupe(candidates) {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		page, err := c.fetcher.Probe(ctx, cand)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("probe %s: %w", cand, err))
			continue
		}
		if pid, mp, ok := extractFromPage(page); ok {
			if res, ok := validResult(mp, pid, info); ok {
				return res, "probe"
			}
		}
	}

	// 11
	final, err := c.fetcher.FollowRedirects(ctx, sanitized)
	if err == nil && IsValidURL(final) {
		fi := DetectAgent(final)
		return ConversionResult{
			RawLink:        final,
			IsValid:        true,
			Degraded:       true,
			IsAgent:        fi.IsAgent,
			AgentName:      fi.AgentName,
			OriginalDomain: fi.OriginalDomain,
		}, "follow"
	}
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("follow %s: %w", sanitized, err))
	}

	// 12
	if errs != nil {
		slog.Debug("linkconv: fallback chain exhausted", "input", sanitized, "err", errs.ErrorOrNil())
	}
	return invalidResult(ErrUnresolvable, &info), "exhausted"
}

var (
	encodedMarketplaceURLPattern = regexp.MustCompile(`(?i)https%3A%2F%2F(?:weidian\.com%2Fitem\.html%3FitemID%3D\d+|item\.taobao\.com%2Fitem\.htm%3Fid%3D\d+|detail\.1688\.com%2Foffer%2F\d+\.html)`)
	plainMarketplaceURLPattern   = regexp.MustCompile(`(?i)https?://(?:weidian\.com/item\.html\?itemID=\d+|item\.taobao\.com/item\.htm\?id=\d+|detail\.1688\.com/offer/\d+\.html)`)
)

// extractFromPage 探测结果的使用顺序：跳转后的最终地址、正文里（编码或明文的）平台链接、
// 页面里收集到的候选链接、最后才是正文的文本规则。
func extractFromPage(p Page) (string, Marketplace, bool) {
	if IsValidURL(p.FinalURL) {
		if pid, mp := ExtractIDAndMarketplace(NormalizeAgentURLToRaw(p.FinalURL)); pid != "" && mp.Valid() {
			return pid, mp, true
		}
	}
	if m := encodedMarketplaceURLPattern.FindString(p.Body); m != "" {
		if pid, mp := ExtractIDAndMarketplace(MultiDecode(m)); pid != "" && mp.Valid() {
			return pid, mp, true
		}
	}
	if m := plainMarketplaceURLPattern.FindString(p.Body); m != "" {
		if pid, mp := ExtractIDAndMarketplace(m); pid != "" && mp.Valid() {
			return pid, mp, true
		}
	}
	for _, l := range p.Links {
		if !IsValidURL(l) {
			continue
		}
		if pid, mp := ExtractIDAndMarketplace(NormalizeAgentURLToRaw(l)); pid != "" && mp.Valid() {
			return pid, mp, true
		}
	}
	return ExtractFromText(p.Body)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ResolveMarketplaceAndID 后台录入商品时使用，失败返回错误而不是结果对象。
// hint 为平台名（可空），item 为链接、商品 ID 或包含链接的文本。
func (c *Converter) ResolveMarketplaceAndID(hint, item string) (Resolution, error) {
	candidate := strings.TrimSpace(item)
	// 识别不了的平台名当作没给
	hintMP := ParseMarketplace(hint)

	fromURL := func(raw string) (Resolution, bool) {
		pid, mp := ExtractIDAndMarketplace(NormalizeAgentURLToRaw(raw))
		pid = SanitizeProductID(pid)
		if pid == "" || !mp.Valid() {
			return Resolution{}, false
		}
		return Resolution{Marketplace: mp, ProductID: pid, RawURL: BuildMarketplaceLink(string(mp), pid)}, true
	}

	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		if r, ok := fromURL(candidate); ok {
			return r, nil
		}
		if hintMP.Valid() {
			last := candidate[strings.LastIndexByte(candidate, '/')+1:]
			pid := SanitizeProductID(last)
			if pid != "" {
				return Resolution{Marketplace: hintMP, ProductID: pid, RawURL: BuildMarketplaceLink(string(hintMP), pid)}, nil
			}
		}
		return Resolution{}, ErrResolveFromURL
	}

	if hintMP.Valid() {
		if pid := SanitizeProductID(candidate); pid != "" {
			return Resolution{Marketplace: hintMP, ProductID: pid, RawURL: BuildMarketplaceLink(string(hintMP), pid)}, nil
		}
		return Resolution{}, ErrResolveFromInput
	}

	if u, ok := ExtractFirstURL(candidate); ok {
		if r, ok := fromURL(u); ok {
			return r, nil
		}
	}
	return Resolution{}, ErrResolveFromInput
}
