package linkconv

import (
	"net/url"
	"regexp"
	"strings"
)

// 可能携带内层链接的查询参数，按优先级排列。
var urlParamKeys = []string{"url", "link", "u", "productLink"}

var (
	firstURLPattern   = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)
	innerParamPattern = regexp.MustCompile(`(?i)[?&](?:url|link|u|productLink)=([^&#\s]+)`)
)

// MultiDecode 最多做 3 轮百分号解码，遇到定点或非法转义即停止，返回最后一次成功的结果。
func MultiDecode(s string) string {
	prev := s
	for i := 0; i < 3; i++ {
		next, err := url.PathUnescape(prev)
		if err != nil || next == prev {
			break
		}
		prev = next
	}
	return prev
}

// IsValidURL 要求是带 scheme 和 host 的绝对地址。
func IsValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// SanitizeInput trim、去掉前导 @（社交平台粘贴时常见），再多轮解码。
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") {
		s = strings.TrimSpace(strings.TrimLeft(s, "@"))
	}
	return MultiDecode(s)
}

// ExtractFirstURL 从任意文本中找出第一个 http(s) 链接。
func ExtractFirstURL(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := firstURLPattern.FindString(MultiDecode(text))
	return m, m != ""
}

// UnwrapInnerURLAnywhere 在整段文本里找 url/link/u/productLink 参数，值本身是合法链接才返回。
func UnwrapInnerURLAnywhere(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := innerParamPattern.FindStringSubmatch(MultiDecode(text))
	if m == nil {
		return "", false
	}
	candidate := MultiDecode(m[1])
	if !IsValidURL(candidate) {
		return "", false
	}
	return candidate, true
}

// UnwrapQueryParam 按 urlParamKeys 的顺序查看查询参数，返回第一个能解码为合法链接的值。
func UnwrapQueryParam(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, k := range urlParamKeys {
		if !q.Has(k) {
			continue
		}
		inner := MultiDecode(q.Get(k))
		if IsValidURL(inner) {
			return inner, true
		}
	}
	return "", false
}

// hashQuery 解析 SPA 路由 fragment 里 ? 之后的部分，例如 #/goods?url=...
func hashQuery(u *url.URL) url.Values {
	frag := u.EscapedFragment()
	i := strings.IndexByte(frag, '?')
	if i < 0 {
		return nil
	}
	q, err := url.ParseQuery(frag[i+1:])
	if err != nil {
		return nil
	}
	return q
}

// HandleSPAHash fragment 中带 url 参数时返回解码后的内层链接，否则原样返回。
func HandleSPAHash(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := hashQuery(u)
	if q == nil {
		return rawURL
	}
	if inner := q.Get("url"); inner != "" {
		return MultiDecode(inner)
	}
	return rawURL
}

// HostOf 返回小写、去掉 www. 前缀的 hostname；解析失败返回空串。
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

var componentUnescaper = strings.NewReplacer("+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// encodeComponent 与浏览器 encodeURIComponent 一致：空格编码为 %20，!'()* 不转义。
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
