package linkconv

import (
	"net/url"
	"regexp"
	"strings"
)

// linkParams 是模板渲染的输入。platform 保留调用方传入的小写原值，
// 个别代购站（lovegobuy、basetao、loongbuy）会把它原样拼进链接。
type linkParams struct {
	platform string
	pid      string
	raw      string
	aff      string
}

// agent 描述一个代购站：怎么生成商品链接，以及怎么从它的链接还原出平台链接。
type agent struct {
	key    string
	name   string
	hosts  []string
	build  func(p linkParams) string
	unwrap func(u *url.URL) (string, bool)
}

func (a *agent) matchHost(host string) bool {
	for _, h := range a.hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// platformTokens 平台 -> 代购站自己的平台写法，"" 为兜底。
type platformTokens map[string]string

func (t platformTokens) token(platform string) string {
	if v, ok := t[platform]; ok {
		return v
	}
	return t[""]
}

var (
	cnfansPlatforms   = platformTokens{"1688": "ALI_1688", "weidian": "WEIDIAN", "": "TAOBAO"}
	acbuySources      = platformTokens{"1688": "AL", "weidian": "WD", "": "TB"}
	superbuyPlatforms = platformTokens{"1688": "ALIBABA", "weidian": "WD", "": "TMALL"}
	hipoPathCodes     = platformTokens{"1688": "0", "taobao": "1", "": "weidian"}
	hoobuyPathCodes   = platformTokens{"1688": "0", "taobao": "1", "": "2"}
	usfansPathCodes   = platformTokens{"1688": "1", "taobao": "2", "": "3"}
	ponybuyPathCodes  = platformTokens{"1688": "2", "taobao": "1", "": "3"}
)

// marketplaceCodes 路径里的平台码 -> 平台。不同站点对同一个码的含义不同，不要合并。
type marketplaceCodes map[string]Marketplace

var (
	// hoobuy / oopbuy / hipobuy / gonest 共用
	defaultFamilyCodes = marketplaceCodes{
		"0": Alibaba1688, "1": Taobao, "2": Weidian,
		"weidian": Weidian, "ali_1688": Alibaba1688, "taobao": Taobao,
	}
	ponyBuyCodes = marketplaceCodes{"2": Alibaba1688, "1": Taobao, "3": Weidian}
	usFansCodes  = marketplaceCodes{"1": Alibaba1688, "2": Taobao, "3": Weidian}
	// hipobuy / oopbuy 的旧链接用文字码，未知码一律按微店处理
	hipoFamilyCodes = marketplaceCodes{
		"0": Alibaba1688, "ali": Alibaba1688, "ali_1688": Alibaba1688, "1688": Alibaba1688,
		"1": Taobao, "tb": Taobao, "tmall": Taobao, "taobao": Taobao,
	}
	superbuyCodes = marketplaceCodes{"ALIBABA": Alibaba1688, "WD": Weidian, "TMALL": Taobao, "TAOBAO": Taobao}
)

// agentTable 的顺序决定 compact code 的 agent 索引，只能在末尾追加。
var agentTable = []*agent{
	{
		key: "kakobuy", name: "KakoBuy", hosts: []string{"kakobuy", "kabobuy"},
		build: func(p linkParams) string {
			return "https://www.kakobuy.com/item/details?url=" + encodeComponent(p.raw) + optParam("&affcode=", p.aff)
		},
		unwrap: paramUnwrap("url"),
	},
	{
		key: "hipobuy", name: "HipoBuy", hosts: []string{"hipobuy"},
		build: func(p linkParams) string {
			return "https://hipobuy.com/product/" + hipoPathCodes.token(p.platform) + "/" + p.pid + optParam("?inviteCode=", p.aff)
		},
		unwrap: hipoUnwrap,
	},
	{
		key: "cnfans", name: "CNFans", hosts: []string{"cnfans"},
		build:  platformQueryBuild("https://cnfans.com/product", "&ref="),
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "acbuy", name: "ACBuy", hosts: []string{"acbuy"},
		build: func(p linkParams) string {
			return "https://www.acbuy.com/product?id=" + p.pid + "&source=" + acbuySources.token(p.platform) + optParam("&u=", p.aff)
		},
		unwrap: acbuyUnwrap,
	},
	{
		key: "mulebuy", name: "MuleBuy", hosts: []string{"mulebuy"},
		build:  platformQueryBuild("https://mulebuy.com/product", "&ref="),
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "oopbuy", name: "OopBuy", hosts: []string{"oopbuy"},
		build: func(p linkParams) string {
			return "https://oopbuy.com/product/" + hipoPathCodes.token(p.platform) + "/" + p.pid + optParam("?inviteCode=", p.aff)
		},
		unwrap: hipoUnwrap,
	},
	{
		key: "lovegobuy", name: "LoveGoBuy", hosts: []string{"lovegobuy"},
		build: func(p linkParams) string {
			shopType := p.platform
			if shopType == "1688" {
				shopType = "ali_1688"
			}
			return "https://lovegobuy.com/product?id=" + p.pid + "&shop_type=" + shopType + optParam("&invite_code=", p.aff)
		},
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "itaobuy", name: "iTaoBuy", hosts: []string{"itaobuy"},
		build: func(p linkParams) string {
			return "https://www.itaobuy.com/product-detail?url=" + encodeComponent(p.raw) + optParam("&inviteCode=", p.aff)
		},
		unwrap: paramUnwrap("url"),
	},
	{
		key: "cssbuy", name: "CSSBuy", hosts: []string{"cssbuy"},
		build: func(p linkParams) string {
			return itemPagePath("https://cssbuy.com", p)
		},
		unwrap: itemPageUnwrap,
	},
	{
		key: "usfans", name: "USFans", hosts: []string{"usfans"},
		build: func(p linkParams) string {
			return "https://usfans.com/product/" + usfansPathCodes.token(p.platform) + "/" + p.pid + optParam("?ref=", p.aff)
		},
		unwrap: pathCodeUnwrap(usFansCodes, defaultFamilyCodes),
	},
	{
		key: "superbuy", name: "SuperBuy", hosts: []string{"superbuy"},
		build: func(p linkParams) string {
			return "https://www.superbuy.com/en/page/buy/?platform=" + superbuyPlatforms.token(p.platform) + "&id=" + p.pid + optParam("&partnercode=", p.aff)
		},
		unwrap: superbuyUnwrap,
	},
	{
		key: "basetao", name: "BaseTao", hosts: []string{"basetao"},
		build: func(p linkParams) string {
			return "https://www.basetao.com/best-taobao-agent-service/products/agent/" + p.platform + "/" + p.pid + ".html"
		},
		unwrap: basetaoUnwrap,
	},
	{
		key: "eastmallbuy", name: "EastMallBuy", hosts: []string{"eastmallbuy"},
		build: func(p linkParams) string {
			switch p.platform {
			case "1688":
				return "https://eastmallbuy.com/item?tp=1688&tid=" + p.pid + "&inviter=" + encodeComponent(p.aff)
			case "weidian":
				return "https://eastmallbuy.com/item?tp=micro&tid=" + p.pid + "&inviter=" + encodeComponent(p.aff)
			}
			return "https://eastmallbuy.com/index/item/index.html?tp=taobao&url=" + encodeComponent(p.raw) + optParam("&inviter=", p.aff)
		},
		unwrap: hybridUnwrap,
	},
	{
		key: "pingubuy", name: "PinguBuy", hosts: []string{"pingubuy"},
		build: func(p linkParams) string {
			link := itemPagePath("https://pingubuy.com", p)
			if p.platform != "1688" && p.platform != "weidian" {
				link += optParam("?promotionCode=", p.aff)
			}
			return link
		},
		unwrap: itemPageUnwrap,
	},
	{
		key: "hoobuy", name: "HooBuy", hosts: []string{"hoobuy"},
		build: func(p linkParams) string {
			return "https://hoobuy.com/product/" + hoobuyPathCodes.token(p.platform) + "/" + p.pid + optParam("?inviteCode=", p.aff)
		},
		unwrap: pathCodeUnwrap(defaultFamilyCodes),
	},
	{
		key: "orientdig", name: "OrientDig", hosts: []string{"orientdig"},
		build:  platformQueryBuild("https://orientdig.com/product", "&ref="),
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "ootdbuy", name: "OOTDBuy", hosts: []string{"ootdbuy"},
		build: func(p linkParams) string {
			channel := p.platform
			if channel == "taobao" {
				channel = "TAOBAO"
			}
			return "https://www.ootdbuy.com/goods/details?id=" + p.pid + "&channel=" + channel
		},
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "sugargoo", name: "SugarGoo", hosts: []string{"sugargoo"},
		build: func(p linkParams) string {
			return "https://www.sugargoo.com/productDetail?productLink=" + encodeComponent(p.raw) + optParam("&memberId=", p.aff)
		},
		unwrap: paramUnwrap("productLink"),
	},
	{
		key: "joyagoo", name: "JoyaGoo", hosts: []string{"joyagoo"},
		build:  platformQueryBuild("https://joyagoo.com/product", "&ref="),
		unwrap: queryPlatformUnwrap,
	},
	{
		key: "pantherbuy", name: "PantherBuy", hosts: []string{"pantherbuy"},
		build: func(p linkParams) string {
			switch p.platform {
			case "1688":
				return "https://pantherbuy.com/item?tp=1688&tid=" + p.pid
			case "weidian":
				return "https://pantherbuy.com/item?tp=micro&tid=" + p.pid
			}
			return "https://pantherbuy.com/index/item/index.html?tp=taobao&url=" + encodeComponent(p.raw) + optParam("&inviteid=", p.aff)
		},
		unwrap: hybridUnwrap,
	},
	{
		key: "ponybuy", name: "PonyBuy", hosts: []string{"ponybuy"},
		build: func(p linkParams) string {
			return "https://www.ponybuy.com/products/" + ponybuyPathCodes.token(p.platform) + "/" + p.pid + optParam("?inviteCode=", p.aff)
		},
		unwrap: pathCodeUnwrap(ponyBuyCodes, defaultFamilyCodes),
	},
	{
		key: "bbdbuy", name: "BBDBuy", hosts: []string{"bbdbuy"},
		build: func(p linkParams) string {
			switch p.platform {
			case "1688":
				return "https://bbdbuy.com/index/item1688/index.html?tp=1688&tid=" + p.pid
			case "weidian":
				return "https://bbdbuy.com/index/item/index.html?tp=micro&tid=" + p.pid
			}
			return "https://bbdbuy.com/index/item/index.html?tp=taobao&tid=" + p.pid
		},
		unwrap: hybridUnwrap,
	},
	{
		key: "gonestbuy", name: "GonestBuy", hosts: []string{"gonest"},
		build: func(p linkParams) string {
			switch p.platform {
			case "1688":
				return "https://buy.gonest.cn/en/product/" + p.pid + "?platform=1688&type=0"
			case "taobao":
				return "https://buy.gonest.cn/en/product/" + p.pid + "?platform=taobao&type=1"
			}
			return "https://buy.gonest.cn/en/product/0?platform=micro&type=2&keyword=" + encodeComponent(p.raw)
		},
		unwrap: gonestUnwrap,
	},
	{
		key: "loongbuy", name: "LoongBuy", hosts: []string{"loongbuy"},
		build: func(p linkParams) string {
			switch p.platform {
			case "1688", "weidian", "taobao":
				return "https://loongbuy.com/product-details?" + p.platform + "=" + p.pid
			}
			return "https://loongbuy.com/product-details?url=" + encodeComponent(p.raw)
		},
		unwrap: hybridUnwrap,
	},
	{
		// 只有模板，没有默认推广码，partnercode 写死。
		key: "allchinabuy", name: "AllChinaBuy", hosts: []string{"allchinabuy"},
		build: func(p linkParams) string {
			return "https://www.allchinabuy.com/en/page/buy/?nTag=Home-search&from=search-input&_search=url&position=&url=" + encodeComponent(p.raw) + "&partnercode=dkreps"
		},
		unwrap: paramUnwrap("url"),
	},
}

var agentsByKey = func() map[string]*agent {
	m := make(map[string]*agent, len(agentTable))
	for _, a := range agentTable {
		m[a.key] = a
	}
	return m
}()

func lookupAgent(key string) (*agent, bool) {
	a, ok := agentsByKey[strings.ToLower(strings.TrimSpace(key))]
	return a, ok
}

// extraUnwrappers 是只需要还原、不生成链接的站点。
var extraUnwrappers = []struct {
	hostSuffix string
	unwrap     func(u *url.URL) (string, bool)
}{
	{hostSuffix: "picks.ly", unwrap: picksUnwrap},
}

func optParam(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + encodeComponent(value)
}

func platformQueryBuild(base, affPrefix string) func(p linkParams) string {
	return func(p linkParams) string {
		return base + "?id=" + p.pid + "&platform=" + cnfansPlatforms.token(p.platform) + optParam(affPrefix, p.aff)
	}
}

func itemPagePath(base string, p linkParams) string {
	switch p.platform {
	case "1688":
		return base + "/item-1688-" + p.pid + ".html"
	case "weidian":
		return base + "/item-micro-" + p.pid + ".html"
	}
	return base + "/item-" + p.pid + ".html"
}

func decodeOnce(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func marketplaceLink(mp Marketplace, pid string) (string, bool) {
	if pid == "" || !mp.Valid() {
		return "", false
	}
	return BuildMarketplaceLink(string(mp), pid), true
}

// paramUnwrap 直接透传某个查询参数（依次尝试 keys）。
func paramUnwrap(keys ...string) func(u *url.URL) (string, bool) {
	return func(u *url.URL) (string, bool) {
		q := u.Query()
		for _, k := range keys {
			if v := q.Get(k); v != "" {
				return decodeOnce(v), true
			}
		}
		return "", false
	}
}

// queryPlatformUnwrap: ?id=...&platform|shop_type|channel=...
func queryPlatformUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	id := q.Get("id")
	if id == "" {
		return "", false
	}
	platform := strings.ToUpper(firstNonEmpty(q.Get("platform"), q.Get("shop_type"), q.Get("channel")))
	switch {
	case strings.Contains(platform, "1688"):
		return marketplaceLink(Alibaba1688, id)
	case strings.Contains(platform, "WEIDIAN"), strings.Contains(platform, "WD"):
		return marketplaceLink(Weidian, id)
	case strings.Contains(platform, "TAOBAO"), strings.Contains(platform, "TMALL"), strings.Contains(platform, "TB"):
		return marketplaceLink(Taobao, id)
	}
	return "", false
}

// productPathSegments 找 /product(s)/{code}/{id}，忽略语言段 en。
func productPathSegments(p string) (code, pid string, ok bool) {
	parts := make([]string, 0, 4)
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "en" {
			parts = append(parts, s)
		}
	}
	idx := -1
	for i, s := range parts {
		if s == "product" {
			idx = i + 1
			break
		}
	}
	if idx < 0 {
		for i, s := range parts {
			if s == "products" {
				idx = i + 1
				break
			}
		}
	}
	if idx <= 0 || idx >= len(parts)-1 {
		return "", "", false
	}
	return parts[idx], parts[idx+1], true
}

// pathCodeUnwrap 依次在 tables 中查找平台码，先命中的表优先。
func pathCodeUnwrap(tables ...marketplaceCodes) func(u *url.URL) (string, bool) {
	return func(u *url.URL) (string, bool) {
		code, pid, ok := productPathSegments(u.Path)
		if !ok {
			return "", false
		}
		for _, t := range tables {
			if mp, ok := t[code]; ok {
				return marketplaceLink(mp, pid)
			}
		}
		return "", false
	}
}

func hipoUnwrap(u *url.URL) (string, bool) {
	code, pid, ok := productPathSegments(u.Path)
	if !ok {
		return "", false
	}
	if mp, ok := defaultFamilyCodes[code]; ok {
		return marketplaceLink(mp, pid)
	}
	if mp, ok := hipoFamilyCodes[strings.ToLower(code)]; ok {
		return marketplaceLink(mp, pid)
	}
	return marketplaceLink(Weidian, pid)
}

func acbuyUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	id := q.Get("id")
	if id == "" {
		return "", false
	}
	switch strings.ToUpper(q.Get("source")) {
	case "AL":
		return marketplaceLink(Alibaba1688, id)
	case "WD":
		return marketplaceLink(Weidian, id)
	}
	return marketplaceLink(Taobao, id)
}

// superbuyUnwrap 支持 query 和 SPA hash 两种写法。
func superbuyUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	h := hashQuery(u)
	if inner := firstNonEmpty(q.Get("url"), h.Get("url")); inner != "" {
		return decodeOnce(inner), true
	}
	platform := strings.ToUpper(firstNonEmpty(q.Get("platform"), h.Get("platform")))
	mp, ok := superbuyCodes[platform]
	if !ok {
		return "", false
	}
	return marketplaceLink(mp, firstNonEmpty(q.Get("id"), h.Get("id")))
}

var basetaoPathPattern = regexp.MustCompile(`/products/agent/([A-Za-z0-9_]+)/([A-Za-z0-9_-]+)\.html`)

func basetaoUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	if v := firstNonEmpty(q.Get("keyword"), q.Get("url")); v != "" {
		return decodeOnce(v), true
	}
	m := basetaoPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return BuildMarketplaceLink(m[1], m[2]), true
}

var (
	itemPage1688Pattern    = regexp.MustCompile(`item-1688-(\d+)\.html`)
	itemPageMicroPattern   = regexp.MustCompile(`item-micro-(\d+)\.html`)
	itemPageTaobaoPattern  = regexp.MustCompile(`item-(\d+)\.html`)
	hybridAnyIDPattern     = regexp.MustCompile(`(1688ID|itemID)=(\d+)`)
	picksItemPathPattern   = regexp.MustCompile(`/item/([A-Z0-9_]+)/(\d+)`)
	gonestProductIDPattern = regexp.MustCompile(`/product/([A-Za-z0-9_-]+)`)
)

// itemPageUnwrap: cssbuy / pingubuy 的 item-1688-、item-micro-、item- 页面。
func itemPageUnwrap(u *url.URL) (string, bool) {
	if m := itemPage1688Pattern.FindStringSubmatch(u.Path); m != nil {
		return marketplaceLink(Alibaba1688, m[1])
	}
	if m := itemPageMicroPattern.FindStringSubmatch(u.Path); m != nil {
		return marketplaceLink(Weidian, m[1])
	}
	if m := itemPageTaobaoPattern.FindStringSubmatch(u.Path); m != nil {
		return marketplaceLink(Taobao, m[1])
	}
	return "", false
}

func tpMarketplace(tp string) Marketplace {
	tp = strings.ToLower(tp)
	switch {
	case strings.Contains(tp, "1688"):
		return Alibaba1688
	case strings.Contains(tp, "micro"):
		return Weidian
	case strings.Contains(tp, "taobao"):
		return Taobao
	}
	return Unknown
}

// hybridUnwrap: eastmallbuy / bbdbuy / pantherbuy / loongbuy。
// 顺序：url 参数、平台名参数、tp+tid、路径里的 1688ID= / itemID=、末段 id=。
func hybridUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	h := hashQuery(u)
	if inner := firstNonEmpty(q.Get("url"), h.Get("url")); inner != "" {
		return decodeOnce(inner), true
	}
	if id := q.Get("1688"); id != "" {
		return marketplaceLink(Alibaba1688, id)
	}
	if id := q.Get("taobao"); id != "" {
		return marketplaceLink(Taobao, id)
	}
	if id := q.Get("weidian"); id != "" {
		return marketplaceLink(Weidian, id)
	}
	if tid := firstNonEmpty(q.Get("tid"), h.Get("tid")); tid != "" {
		if mp := tpMarketplace(firstNonEmpty(q.Get("tp"), h.Get("tp"))); mp.Valid() {
			return marketplaceLink(mp, tid)
		}
	}
	if m := hybridAnyIDPattern.FindStringSubmatch(u.EscapedPath()); m != nil {
		if m[1] == "1688ID" {
			return marketplaceLink(Alibaba1688, m[2])
		}
		return marketplaceLink(Weidian, m[2])
	}
	parts := strings.Split(u.Path, "/")
	if len(parts) >= 4 {
		last := parts[len(parts)-1]
		if pid, ok := strings.CutPrefix(last, "id="); ok {
			for _, p := range parts {
				switch p {
				case "1688":
					return marketplaceLink(Alibaba1688, pid)
				case "taobao":
					return marketplaceLink(Taobao, pid)
				}
			}
		}
	}
	return "", false
}

// gonestUnwrap: /en/product/{id}?platform=1688|taobao，微店商品走 keyword 透传。
func gonestUnwrap(u *url.URL) (string, bool) {
	q := u.Query()
	switch strings.ToLower(q.Get("platform")) {
	case "micro", "weidian":
		if kw := q.Get("keyword"); kw != "" {
			return decodeOnce(kw), true
		}
	case "1688":
		if m := gonestProductIDPattern.FindStringSubmatch(u.Path); m != nil {
			return marketplaceLink(Alibaba1688, m[1])
		}
	case "taobao":
		if m := gonestProductIDPattern.FindStringSubmatch(u.Path); m != nil {
			return marketplaceLink(Taobao, m[1])
		}
	}
	return pathCodeUnwrap(defaultFamilyCodes)(u)
}

func picksUnwrap(u *url.URL) (string, bool) {
	m := picksItemPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	switch strings.ToUpper(m[1]) {
	case "1688":
		return marketplaceLink(Alibaba1688, m[2])
	case "WEIDIAN":
		return marketplaceLink(Weidian, m[2])
	}
	return marketplaceLink(Taobao, m[2])
}
