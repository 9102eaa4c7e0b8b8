package linkconv

import (
	"net/url"
	"regexp"
	"strings"
)

var offerPathPattern = regexp.MustCompile(`/offer/(\d+)`)

// ExtractIDAndMarketplace 从平台规范链接中取出商品 ID 和平台。
// 解析失败或不是已知平台时返回两个空值。
func ExtractIDAndMarketplace(rawURL string) (string, Marketplace) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", Unknown
	}
	host := strings.ToLower(u.Hostname())
	q := u.Query()
	switch {
	case strings.Contains(host, "taobao.com") || strings.Contains(host, "tmall.com"):
		return q.Get("id"), Taobao
	case strings.Contains(host, "weidian.com"):
		if id := q.Get("itemID"); id != "" {
			return id, Weidian
		}
		return q.Get("itemId"), Weidian
	case strings.Contains(host, "1688.com"):
		if m := offerPathPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1], Alibaba1688
		}
	}
	return "", Unknown
}

var (
	textOfferPattern    = regexp.MustCompile(`offer/(\d+)\.html`)
	textItemIDPattern   = regexp.MustCompile(`(?:itemID|itemId)=(\d{6,})`)
	textIDPattern       = regexp.MustCompile(`[?&]id=(\d{6,})`)
	textItemPathPattern = regexp.MustCompile(`(?i)/item/(TAOBAO|TMALL|WEIDIAN|ALIBABA|1688)/(\d+)`)
)

// ExtractFromText 在任意文本（URL 或 HTML）里按固定顺序匹配商品 ID：
// 1688 offer 页、微店 itemID、淘宝 id 参数、最后是 /item/{PLATFORM}/{id} 形式。
func ExtractFromText(text string) (string, Marketplace, bool) {
	decoded := MultiDecode(text)
	if m := textOfferPattern.FindStringSubmatch(decoded); m != nil {
		return m[1], Alibaba1688, true
	}
	if m := textItemIDPattern.FindStringSubmatch(decoded); m != nil {
		return m[1], Weidian, true
	}
	if m := textIDPattern.FindStringSubmatch(decoded); m != nil {
		return m[1], Taobao, true
	}
	if m := textItemPathPattern.FindStringSubmatch(decoded); m != nil {
		return m[2], itemPathMarketplace(m[1]), true
	}
	return "", Unknown, false
}

func itemPathMarketplace(token string) Marketplace {
	switch strings.ToUpper(token) {
	case "ALIBABA", "1688":
		return Alibaba1688
	case "WEIDIAN":
		return Weidian
	}
	return Taobao
}

// NormalizeAgentURLToRaw 把代购站链接还原成平台规范链接。
// 没有规则命中时原样返回，调用方需要自行再校验。
func NormalizeAgentURLToRaw(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, a := range agentTable {
		if a.unwrap == nil || !a.matchHost(host) {
			continue
		}
		if raw, ok := a.unwrap(u); ok {
			return raw
		}
	}
	for _, r := range extraUnwrappers {
		if !strings.HasSuffix(host, r.hostSuffix) {
			continue
		}
		if raw, ok := r.unwrap(u); ok {
			return raw
		}
	}
	return rawURL
}
