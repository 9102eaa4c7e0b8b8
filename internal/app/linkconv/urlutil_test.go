package linkconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "https://item.taobao.com/item.htm?id=1", "https://item.taobao.com/item.htm?id=1"},
		{"single", "https%3A%2F%2Fweidian.com", "https://weidian.com"},
		{"double", "a%2520b", "a b"},
		{"triple", "a%252520b", "a b"},
		{"stops after three passes", "a%25252520b", "a%20b"},
		{"malformed", "100%", "100%"},
		{"malformed after first pass", "%25zz", "%zz"},
		{"plus kept", "a+b", "a+b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MultiDecode(tt.input))
		})
	}
}

func TestMultiDecode_FixedPoint(t *testing.T) {
	inputs := []string{
		"https://weidian.com/item.html?itemID=987654321",
		"hello world",
		"",
		"https://x.com/a b/c",
	}
	for _, in := range inputs {
		assert.Equal(t, in, MultiDecode(in))
		assert.Equal(t, MultiDecode(in), MultiDecode(MultiDecode(in)))
	}
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("https://item.taobao.com/item.htm?id=1"))
	assert.True(t, IsValidURL("http://a.b"))
	assert.False(t, IsValidURL(""))
	assert.False(t, IsValidURL("item.taobao.com/item.htm"))
	assert.False(t, IsValidURL("mailto:someone"))
	assert.False(t, IsValidURL("://broken"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "https://x.com/a/b", SanitizeInput("  @@https://x.com/a%2Fb \n"))
	assert.Equal(t, "https://x.com", SanitizeInput("@ https://x.com"))
	assert.Equal(t, "", SanitizeInput("   "))
}

func TestExtractFirstURL(t *testing.T) {
	got, ok := ExtractFirstURL("look at this https://item.taobao.com/item.htm?id=123456 it's great")
	assert.True(t, ok)
	assert.Equal(t, "https://item.taobao.com/item.htm?id=123456", got)

	got, ok = ExtractFirstURL(`<a href="https://weidian.com/item.html?itemID=1">x</a>`)
	assert.True(t, ok)
	assert.Equal(t, "https://weidian.com/item.html?itemID=1", got)

	_, ok = ExtractFirstURL("no links here")
	assert.False(t, ok)
	_, ok = ExtractFirstURL("")
	assert.False(t, ok)
}

func TestUnwrapInnerURLAnywhere(t *testing.T) {
	got, ok := UnwrapInnerURLAnywhere("https://a.com/x?foo=1&url=https%3A%2F%2Fweidian.com%2Fitem.html%3FitemID%3D123")
	assert.True(t, ok)
	assert.Equal(t, "https://weidian.com/item.html?itemID=123", got)

	_, ok = UnwrapInnerURLAnywhere("https://a.com/x?url=notaurl")
	assert.False(t, ok)
	_, ok = UnwrapInnerURLAnywhere("https://a.com/x?id=1")
	assert.False(t, ok)
}

func TestUnwrapQueryParam(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"url", "https://kakobuy.com/item/details?url=https%3A%2F%2Fweidian.com%2Fitem.html%3FitemID%3D123", "https://weidian.com/item.html?itemID=123", true},
		{"link", "https://x.com/go?link=https%3A%2F%2Fitem.taobao.com%2Fitem.htm%3Fid%3D9", "https://item.taobao.com/item.htm?id=9", true},
		{"productLink", "https://sugargoo.com/productDetail?productLink=https%253A%252F%252Fdetail.1688.com%252Foffer%252F5.html", "https://detail.1688.com/offer/5.html", true},
		{"url wins over link", "https://x.com/?link=https%3A%2F%2Fa.com&url=https%3A%2F%2Fb.com", "https://b.com", true},
		{"invalid inner skipped", "https://x.com/?url=hello&u=https%3A%2F%2Fc.com", "https://c.com", true},
		{"none", "https://x.com/?id=1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UnwrapQueryParam(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandleSPAHash(t *testing.T) {
	assert.Equal(t,
		"https://item.taobao.com/item.htm?id=42",
		HandleSPAHash("https://m.superbuy.com/#/goods?url=https%3A%2F%2Fitem.taobao.com%2Fitem.htm%3Fid%3D42"),
	)
	assert.Equal(t, "https://x.com/#/goods?id=1", HandleSPAHash("https://x.com/#/goods?id=1"))
	assert.Equal(t, "https://x.com/#top", HandleSPAHash("https://x.com/#top"))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "taobao.com", HostOf("https://WWW.Taobao.com/x"))
	assert.Equal(t, "", HostOf("not a url"))
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "a%20b!'()*~%2F%3F%26%3D", encodeComponent("a b!'()*~/?&="))
}
