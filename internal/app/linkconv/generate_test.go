package linkconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 每个代购站 × 每个平台：生成的链接必须能还原出原来的平台和商品 ID。
func TestAgentLinkRoundTrip(t *testing.T) {
	g := NewGenerator(nil)
	for _, a := range agentTable {
		for _, mp := range Marketplaces {
			for _, pid := range []string{"7", "746534604815", "123456789"} {
				t.Run(a.key+"/"+string(mp)+"/"+pid, func(t *testing.T) {
					raw := BuildMarketplaceLink(string(mp), pid)
					link, ok := g.GenerateAgentLink(a.key, string(mp), pid, raw, "")
					require.True(t, ok)
					gotID, gotMP := ExtractIDAndMarketplace(NormalizeAgentURLToRaw(link))
					assert.Equal(t, pid, gotID, link)
					assert.Equal(t, mp, gotMP, link)
				})
			}
		}
	}
}

func TestAgentTable_Consistent(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range agentTable {
		assert.False(t, seen[a.key], "duplicate agent %s", a.key)
		seen[a.key] = true
		assert.NotEmpty(t, a.name)
		assert.NotEmpty(t, a.hosts)
		assert.NotNil(t, a.build)
		assert.NotNil(t, a.unwrap)
	}
	for key := range defaultAffiliateCodes {
		assert.True(t, seen[key], "affiliate code for unknown agent %s", key)
	}
	assert.Len(t, agentTable, 25)
}

// 平台码表容易写反，单独钉死。
func TestPlatformCodeTables(t *testing.T) {
	assert.Equal(t, Alibaba1688, ponyBuyCodes["2"])
	assert.Equal(t, Taobao, ponyBuyCodes["1"])
	assert.Equal(t, Weidian, ponyBuyCodes["3"])

	assert.Equal(t, Alibaba1688, usFansCodes["1"])
	assert.Equal(t, Taobao, usFansCodes["2"])
	assert.Equal(t, Weidian, usFansCodes["3"])

	assert.Equal(t, Alibaba1688, defaultFamilyCodes["0"])
	assert.Equal(t, Taobao, defaultFamilyCodes["1"])
	assert.Equal(t, Weidian, defaultFamilyCodes["2"])

	assert.Equal(t, "2", ponybuyPathCodes.token("1688"))
	assert.Equal(t, "3", ponybuyPathCodes.token("weidian"))
	assert.Equal(t, "3", ponybuyPathCodes.token("whatever"))
	assert.Equal(t, "weidian", hipoPathCodes.token("weidian"))
	assert.Equal(t, "TMALL", superbuyPlatforms.token("taobao"))
}

func TestGenerateAgentLink_Templates(t *testing.T) {
	g := NewGenerator(nil)
	tests := []struct {
		agent    string
		platform string
		pid      string
		want     string
	}{
		{"kakobuy", "taobao", "123", "https://www.kakobuy.com/item/details?url=https%3A%2F%2Fitem.taobao.com%2Fitem.htm%3Fid%3D123&affcode=peter"},
		{"KakoBuy", "taobao", "123", "https://www.kakobuy.com/item/details?url=https%3A%2F%2Fitem.taobao.com%2Fitem.htm%3Fid%3D123&affcode=peter"},
		{"cnfans", "1688", "5", "https://cnfans.com/product?id=5&platform=ALI_1688&ref=15340480"},
		{"acbuy", "weidian", "5", "https://www.acbuy.com/product?id=5&source=WD&u=VDFVGW"},
		{"hipobuy", "weidian", "5", "https://hipobuy.com/product/weidian/5?inviteCode=SBCXYTYKF"},
		{"cssbuy", "1688", "5", "https://cssbuy.com/item-1688-5.html"},
		{"pingubuy", "weidian", "5", "https://pingubuy.com/item-micro-5.html"},
		{"pingubuy", "taobao", "5", "https://pingubuy.com/item-5.html?promotionCode=blBaSG5JMTE"},
		{"pantherbuy", "taobao", "5", "https://pantherbuy.com/index/item/index.html?tp=taobao&url=https%3A%2F%2Fitem.taobao.com%2Fitem.htm%3Fid%3D5&inviteid=MTM0OQ%3D%3D"},
		{"eastmallbuy", "weidian", "5", "https://eastmallbuy.com/item?tp=micro&tid=5&inviter=petopagi"},
		{"joyagoo", "weidian", "5", "https://joyagoo.com/product?id=5&platform=WEIDIAN"},
		{"ootdbuy", "taobao", "5", "https://www.ootdbuy.com/goods/details?id=5&channel=TAOBAO"},
		{"lovegobuy", "1688", "5", "https://lovegobuy.com/product?id=5&shop_type=ali_1688&invite_code=9RN41U"},
		{"basetao", "weidian", "5", "https://www.basetao.com/best-taobao-agent-service/products/agent/weidian/5.html"},
		{"loongbuy", "1688", "5", "https://loongbuy.com/product-details?1688=5"},
		{"superbuy", "taobao", "5", "https://www.superbuy.com/en/page/buy/?platform=TMALL&id=5&partnercode=EVZK8D"},
		{"allchinabuy", "weidian", "5", "https://www.allchinabuy.com/en/page/buy/?nTag=Home-search&from=search-input&_search=url&position=&url=https%3A%2F%2Fweidian.com%2Fitem.html%3FitemID%3D5&partnercode=dkreps"},
		{"hoobuy", "taobao", "5/../x?y", "https://hoobuy.com/product/1/5?inviteCode=AXnBBwX7"},
	}
	for _, tt := range tests {
		t.Run(tt.agent+"/"+tt.platform, func(t *testing.T) {
			got, ok := g.GenerateAgentLink(tt.agent, tt.platform, tt.pid, "", "")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateAgentLink_Override(t *testing.T) {
	g := NewGenerator(nil)
	got, ok := g.GenerateAgentLink("kakobuy", "weidian", "42", "", "myCreatorCode")
	require.True(t, ok)
	assert.Equal(t, DefaultShortlinkBase+"/kakobuy/weidian/42/myCreatorCode", got)

	got, ok = g.GenerateAgentLink("CNFans", "Taobao", "42", "", "a b/c")
	require.True(t, ok)
	assert.Equal(t, DefaultShortlinkBase+"/cnfans/taobao/42/a%20b%2Fc", got)
}

func TestGenerateAgentLink_UnknownAgent(t *testing.T) {
	g := NewGenerator(nil)
	_, ok := g.GenerateAgentLink("nosuchagent", "taobao", "1", "", "")
	assert.False(t, ok)
	_, ok = g.GenerateAgentLink("nosuchagent", "taobao", "1", "", "code")
	assert.False(t, ok)
	assert.False(t, KnownAgent(""))
}

func TestTemplateLink_CodeReplacesDefault(t *testing.T) {
	g := NewGenerator(nil)
	got, ok := g.TemplateLink("hoobuy", "weidian", "9", "", "creator1")
	require.True(t, ok)
	assert.Equal(t, "https://hoobuy.com/product/2/9?inviteCode=creator1", got)

	got, ok = g.TemplateLink("hoobuy", "weidian", "9", "", "")
	require.True(t, ok)
	assert.Equal(t, "https://hoobuy.com/product/2/9?inviteCode=AXnBBwX7", got)
}

func TestAllAgentLinks(t *testing.T) {
	g := NewGenerator(nil)
	links := g.AllAgentLinks("weidian", "31337", "")
	require.Len(t, links, len(agentTable))
	assert.Equal(t, "kakobuy", links[0].Agent)
	assert.Equal(t, "allchinabuy", links[len(links)-1].Agent)
	for _, l := range links {
		id, mp := ExtractIDAndMarketplace(NormalizeAgentURLToRaw(l.Link))
		assert.Equal(t, "31337", id, l.Agent)
		assert.Equal(t, Weidian, mp, l.Agent)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	data := []byte(`
shortlink_base: https://s.example.com/
affiliate_codes:
  KakoBuy: mine
  joyagoo: joy1
shortener_hosts:
  - sho.rt
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	c, err := LoadCatalogFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "https://s.example.com", c.ShortlinkBase)
	assert.Equal(t, "mine", c.AffiliateCode("kakobuy"))
	assert.Equal(t, "joy1", c.AffiliateCode("joyagoo"))
	assert.Equal(t, "15340480", c.AffiliateCode("cnfans"))
	assert.Contains(t, c.ShortenerHosts, "sho.rt")
	assert.Contains(t, c.ShortenerHosts, "bit.ly")

	g := NewGenerator(c)
	got, _ := g.GenerateAgentLink("joyagoo", "taobao", "1", "", "")
	assert.Equal(t, "https://joyagoo.com/product?id=1&platform=TAOBAO&ref=joy1", got)
	got, _ = g.GenerateAgentLink("joyagoo", "taobao", "1", "", "x")
	assert.Equal(t, "https://s.example.com/joyagoo/taobao/1/x", got)

	c, err = LoadCatalogFile(path, "https://other.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", c.ShortlinkBase)

	_, err = LoadCatalogFile(filepath.Join(dir, "missing.yaml"), "")
	assert.Error(t, err)

	// 默认表不受影响
	assert.Equal(t, "peter", DefaultCatalog().AffiliateCode("kakobuy"))
}

func TestCompactCodec(t *testing.T) {
	codec, err := NewCompactCodec("")
	require.NoError(t, err)

	code, err := codec.Encode("hoobuy", Weidian, "746534604815")
	require.NoError(t, err)
	target, err := codec.Decode(code)
	require.NoError(t, err)
	assert.Equal(t, CompactTarget{Agent: "hoobuy", Marketplace: Weidian, ProductID: "746534604815"}, target)

	for _, a := range agentTable {
		code, err := codec.Encode(a.key, Alibaba1688, "42")
		require.NoError(t, err)
		got, err := codec.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, a.key, got.Agent)
	}

	_, err = codec.Encode("hoobuy", Weidian, "abc")
	assert.ErrorIs(t, err, ErrNotCompactable)
	_, err = codec.Encode("hoobuy", Weidian, "0123")
	assert.ErrorIs(t, err, ErrNotCompactable)
	_, err = codec.Encode("nosuch", Weidian, "1")
	assert.Error(t, err)
	_, err = codec.Encode("hoobuy", Unknown, "1")
	assert.Error(t, err)

	_, err = codec.Decode("")
	assert.ErrorIs(t, err, ErrInvalidCompact)
	_, err = codec.Decode("!!!")
	assert.ErrorIs(t, err, ErrInvalidCompact)
}
