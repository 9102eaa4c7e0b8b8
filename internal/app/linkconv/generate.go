package linkconv

import "strings"

// Generator 根据代购站模板生成购买链接。持有的 Catalog 只读，可并发使用。
type Generator struct {
	catalog *Catalog
}

func NewGenerator(c *Catalog) *Generator {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Generator{catalog: c}
}

func (g *Generator) Catalog() *Catalog { return g.catalog }

// AgentDescriptor 是对外展示用的代购站信息。
type AgentDescriptor struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	AffiliateCode string   `json:"affiliateCode"`
	Hosts         []string `json:"hosts"`
}

type AgentLink struct {
	Agent string `json:"agent"`
	Name  string `json:"name"`
	Link  string `json:"link"`
}

// GenerateAgentLink 生成 agent 的商品链接。
//   - override 非空时不走模板，返回本服务的短链 {base}/{agent}/{platform}/{pid}/{override}，用于达人归因；
//   - 否则套用模板并带上默认推广码。
//
// 未知 agent 返回 false，调用方应当视为"没有该代购的链接"，不是错误。
func (g *Generator) GenerateAgentLink(agentKey, platform, productID, rawURL, override string) (string, bool) {
	a, ok := lookupAgent(agentKey)
	if !ok {
		return "", false
	}
	if code := strings.TrimSpace(override); code != "" {
		return g.ShortAgentLink(a.key, platform, productID, code), true
	}
	return g.render(a, platform, productID, rawURL, g.catalog.AffiliateCode(a.key)), true
}

// TemplateLink 和 GenerateAgentLink 一样套模板，但 code 非空时替换默认推广码。
// 短链跳转用它把 /{agent}/{mp}/{pid}/{code} 还原成真正的代购链接。
func (g *Generator) TemplateLink(agentKey, platform, productID, rawURL, code string) (string, bool) {
	a, ok := lookupAgent(agentKey)
	if !ok {
		return "", false
	}
	if code == "" {
		code = g.catalog.AffiliateCode(a.key)
	}
	return g.render(a, platform, productID, rawURL, code), true
}

// ShortAgentLink {base}/{agent}/{platform}/{pid}[/{code}]
func (g *Generator) ShortAgentLink(agentKey, platform, productID, code string) string {
	link := g.catalog.base() + "/" + strings.ToLower(agentKey) + "/" + strings.ToLower(platform) + "/" + SanitizeProductID(productID)
	if code != "" {
		link += "/" + encodeComponent(code)
	}
	return link
}

// AllAgentLinks 按目录顺序为每个代购站生成链接。
func (g *Generator) AllAgentLinks(platform, productID, rawURL string) []AgentLink {
	out := make([]AgentLink, 0, len(agentTable))
	for _, a := range agentTable {
		out = append(out, AgentLink{
			Agent: a.key,
			Name:  a.name,
			Link:  g.render(a, platform, productID, rawURL, g.catalog.AffiliateCode(a.key)),
		})
	}
	return out
}

func (g *Generator) Agents() []AgentDescriptor {
	out := make([]AgentDescriptor, 0, len(agentTable))
	for _, a := range agentTable {
		out = append(out, AgentDescriptor{
			Key:           a.key,
			Name:          a.name,
			AffiliateCode: g.catalog.AffiliateCode(a.key),
			Hosts:         a.hosts,
		})
	}
	return out
}

// KnownAgent 判断 key 是否在目录里（大小写不敏感）。
func KnownAgent(key string) bool {
	_, ok := lookupAgent(key)
	return ok
}

func (g *Generator) render(a *agent, platform, productID, rawURL, aff string) string {
	mp := strings.ToLower(platform)
	pid := SanitizeProductID(productID)
	if rawURL == "" {
		rawURL = BuildMarketplaceLink(mp, pid)
	}
	return a.build(linkParams{platform: mp, pid: pid, raw: rawURL, aff: aff})
}
