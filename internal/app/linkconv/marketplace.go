package linkconv

import (
	"regexp"
	"strings"
)

// Marketplace 商品所在的源平台。空串表示未知。
type Marketplace string

const (
	Taobao      Marketplace = "taobao"
	Weidian     Marketplace = "weidian"
	Alibaba1688 Marketplace = "1688"
	Unknown     Marketplace = ""
)

// Marketplaces 的顺序参与 compact code 编码，只能追加。
var Marketplaces = []Marketplace{Taobao, Weidian, Alibaba1688}

func (m Marketplace) Valid() bool {
	return m == Taobao || m == Weidian || m == Alibaba1688
}

// ParseMarketplace 大小写不敏感地识别平台名，无法识别返回 Unknown。
func ParseMarketplace(s string) Marketplace {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taobao", "tmall":
		return Taobao
	case "weidian":
		return Weidian
	case "1688", "ali_1688", "alibaba", "ali1688":
		return Alibaba1688
	}
	return Unknown
}

// BuildMarketplaceLink 拼出平台商品页的规范链接。
// 无法识别的平台按淘宝处理，不返回错误。
func BuildMarketplaceLink(platform, productID string) string {
	pid := SanitizeProductID(productID)
	switch ParseMarketplace(platform) {
	case Weidian:
		return "https://weidian.com/item.html?itemID=" + pid
	case Alibaba1688:
		return "https://detail.1688.com/offer/" + pid + ".html"
	default:
		return "https://item.taobao.com/item.htm?id=" + pid
	}
}

var productIDDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeProductID 截掉第一个 / 或 ? 之后的内容，只保留 [A-Za-z0-9_-]。
func SanitizeProductID(pid string) string {
	if i := strings.IndexAny(pid, "/?"); i >= 0 {
		pid = pid[:i]
	}
	return productIDDisallowed.ReplaceAllString(pid, "")
}
