package linkconv

import (
	"net/url"
	"strings"
)

// AgentInfo 描述输入链接来自哪个代购站。
type AgentInfo struct {
	IsAgent        bool   `json:"isAgent"`
	AgentName      string `json:"agentName,omitempty"`
	OriginalDomain string `json:"originalDomain,omitempty"`
}

const invalidURLDomain = "invalid-url"

// 识别顺序固定，前面的品牌优先。
var detectBrands = []struct{ token, name string }{
	{"cnfans", "CNFans"},
	{"hoobuy", "HooBuy"},
	{"mulebuy", "MuleBuy"},
	{"superbuy", "SuperBuy"},
	{"cssbuy", "CSSBuy"},
	{"sugargoo", "SugarGoo"},
	{"kakobuy", "KakoBuy"},
	{"joyagoo", "JoyaGoo"},
	{"orientdig", "OrientDig"},
	{"ponybuy", "PonyBuy"},
	{"allchinabuy", "AllChinaBuy"},
}

func DetectAgent(rawURL string) AgentInfo {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return AgentInfo{OriginalDomain: invalidURLDomain}
	}
	domain := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, b := range detectBrands {
		if strings.Contains(domain, b.token) {
			return AgentInfo{IsAgent: true, AgentName: b.name, OriginalDomain: domain}
		}
	}
	return AgentInfo{OriginalDomain: domain}
}

// Detector 判断一个链接是否像短链，依赖 Catalog 中的两份域名表。
type Detector struct {
	shorteners map[string]struct{}
	known      []string
}

func NewDetector(c *Catalog) *Detector {
	if c == nil {
		c = DefaultCatalog()
	}
	d := &Detector{
		shorteners: make(map[string]struct{}, len(c.ShortenerHosts)),
		known:      make([]string, 0, len(c.KnownHosts)),
	}
	for _, h := range c.ShortenerHosts {
		d.shorteners[strings.ToLower(h)] = struct{}{}
	}
	for _, h := range c.KnownHosts {
		d.known = append(d.known, strings.ToLower(h))
	}
	return d
}

// IsLikelyShortLink 白名单短链域名直接命中；已知代购/平台域名直接排除；
// 其余情况只看路径：去掉开头的 / 后长度 1-8 且没有查询串。
func (d *Detector) IsLikelyShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, ok := d.shorteners[host]; ok {
		return true
	}
	for _, h := range d.known {
		if strings.HasSuffix(host, h) {
			return false
		}
	}
	p := strings.Replace(u.EscapedPath(), "/", "", 1)
	return len(p) > 0 && len(p) <= 8 && u.RawQuery == ""
}

// IsNonProductLink 注册、登录、邀请类页面，不是商品。
func IsNonProductLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	p := strings.ToLower(u.Path)
	q := u.Query()
	switch {
	case strings.Contains(p, "/register"), strings.Contains(p, "/login"):
		return true
	case strings.Contains(host, "hoobuy") && q.Has("inviteCode") && !strings.Contains(p, "/product"):
		return true
	case strings.Contains(host, "ponybuy") && q.Has("inviteCode") && !strings.Contains(p, "/products"):
		return true
	case strings.Contains(host, "ikako.vip") && strings.HasPrefix(p, "/r/"):
		return true
	case strings.Contains(host, "basetao") && u.RawQuery != "" && !strings.Contains(p, "/products/agent"):
		// keyword/url 是搜索跳转，仍然指向商品
		return !q.Has("keyword") && !q.Has("url")
	case strings.Contains(host, "sugargoo") && strings.Contains(p, "/mobile"):
		return true
	}
	return false
}
