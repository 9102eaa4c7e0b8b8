package linkconv

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultShortlinkBase = "https://danodrevo-api.vercel.app"

// Catalog 是部署相关的静态配置：短链域名、各代购站默认推广码、已知短链与站点域名。
// 进程启动时加载一次，之后只读。
type Catalog struct {
	ShortlinkBase  string            `yaml:"shortlink_base"`
	AffiliateCodes map[string]string `yaml:"affiliate_codes"`
	ShortenerHosts []string          `yaml:"shortener_hosts"`
	KnownHosts     []string          `yaml:"known_hosts"`
}

var defaultAffiliateCodes = map[string]string{
	"kakobuy":     "peter",
	"hipobuy":     "SBCXYTYKF",
	"cnfans":      "15340480",
	"acbuy":       "VDFVGW",
	"mulebuy":     "200311823",
	"oopbuy":      "5I6VVS7GI",
	"lovegobuy":   "9RN41U",
	"itaobuy":     "5E6LZQUE",
	"cssbuy":      "",
	"usfans":      "GAYXBM",
	"superbuy":    "EVZK8D",
	"basetao":     "eGREeq3wGLEToq4LAxM",
	"eastmallbuy": "petopagi",
	"pingubuy":    "blBaSG5JMTE",
	"hoobuy":      "AXnBBwX7",
	"orientdig":   "100123295",
	"ootdbuy":     "PETER",
	"sugargoo":    "2533720779801838919",
	"joyagoo":     "",
	"pantherbuy":  "MTM0OQ==",
	"ponybuy":     "fee1a5754a",
	"bbdbuy":      "cGV0b3BhZ2k=",
	"gonestbuy":   "",
	"loongbuy":    "B28F4ZFN",
}

var defaultShortenerHosts = []string{
	"ikako.vip", "sl.kakobuy.com", "k.youshop10.com", "youshop10.com",
	"hipobuy.cn", "link.acbuy.com", "oopbuy.cc", "itaobuy.allapp.link",
	"hoobuy.cc", "s.spblk.com", "e.tb.cn", "m.tb.cn", "l.ponybuy.com",
	"bit.ly", "tinyurl.com", "t.cn", "goo.gl", "is.gd", "v.gd",
	"ow.ly", "rebrand.ly",
}

var defaultKnownHosts = []string{
	"taobao.com", "tmall.com", "1688.com", "weidian.com", "yupoo.com",
	"kakobuy.com", "kakobuy.co", "kabobuy.com", "hipobuy.com",
	"cnfans.com", "acbuy.com", "mulebuy.com", "oopbuy.com",
	"lovegobuy.com", "itaobuy.com", "cssbuy.com", "usfans.com",
	"superbuy.com", "basetao.com", "eastmallbuy.com", "pingubuy.com",
	"hoobuy.com", "orientdig.com", "ootdbuy.com", "sugargoo.com",
	"joyagoo.com", "pantherbuy.com", "ponybuy.com", "bbdbuy.com",
	"gonest.cn", "loongbuy.com", "blikbuy.com", "allchinabuy.com",
	"doppel.fit", "repsheet.net",
}

// DefaultCatalog 返回内置配置的副本，调用方可以放心修改。
func DefaultCatalog() *Catalog {
	return &Catalog{
		ShortlinkBase:  DefaultShortlinkBase,
		AffiliateCodes: maps.Clone(defaultAffiliateCodes),
		ShortenerHosts: append([]string(nil), defaultShortenerHosts...),
		KnownHosts:     append([]string(nil), defaultKnownHosts...),
	}
}

// LoadCatalogFile 在内置配置上叠加 YAML 文件：推广码按 key 覆盖，域名列表追加。
// path 为空时只应用 base。base 为空时保留默认值。
func LoadCatalogFile(path, base string) (*Catalog, error) {
	c := DefaultCatalog()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read agent catalog: %w", err)
		}
		var override Catalog
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("parse agent catalog %s: %w", path, err)
		}
		c.merge(&override)
	}
	if base != "" {
		c.ShortlinkBase = base
	}
	c.ShortlinkBase = strings.TrimSuffix(c.ShortlinkBase, "/")
	return c, nil
}

func (c *Catalog) merge(o *Catalog) {
	if o.ShortlinkBase != "" {
		c.ShortlinkBase = o.ShortlinkBase
	}
	for k, v := range o.AffiliateCodes {
		c.AffiliateCodes[strings.ToLower(k)] = v
	}
	c.ShortenerHosts = append(c.ShortenerHosts, o.ShortenerHosts...)
	c.KnownHosts = append(c.KnownHosts, o.KnownHosts...)
}

// AffiliateCode 默认推广码，没有配置时返回空串。
func (c *Catalog) AffiliateCode(agent string) string {
	return c.AffiliateCodes[strings.ToLower(agent)]
}

func (c *Catalog) base() string {
	if c.ShortlinkBase == "" {
		return DefaultShortlinkBase
	}
	return strings.TrimSuffix(c.ShortlinkBase, "/")
}
