package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repfinds.local/gee"
	"repfinds.local/internal/app/linkconv"
	"repfinds.local/internal/app/linkconv/repo"
	"repfinds.local/internal/app/linkconv/stats"
	"repfinds.local/internal/platform/auth"
)

type recorder struct {
	mu     sync.Mutex
	events []stats.Event
}

func (r *recorder) Collect(e stats.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() {}

func (r *recorder) snapshot() []stats.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stats.Event(nil), r.events...)
}

type fakeStats struct {
	since time.Time
	err   error
}

func (f *fakeStats) AgentSummary(_ context.Context, since time.Time) (*repo.Summary, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return &repo.Summary{
		Since:    since,
		Agents:   []repo.AgentStat{{Agent: "hoobuy", Clicks: 3, Conversions: 1}},
		Outcomes: map[string]int64{"valid": 1},
	}, nil
}

type testEnv struct {
	engine *gee.Engine
	events *recorder
	stats  *fakeStats
	tokens auth.TokenService
	codec  *linkconv.CompactCodec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conv := linkconv.NewConverter(nil, nil)
	codec, err := linkconv.NewCompactCodec("")
	require.NoError(t, err)
	ts, err := auth.NewHS256Service("test-secret", "repfinds", time.Hour)
	require.NoError(t, err)

	env := &testEnv{events: &recorder{}, stats: &fakeStats{}, tokens: ts, codec: codec}
	d := Deps{
		Links:            conv,
		Converter:        conv,
		Codec:            codec,
		Collector:        env.events,
		Stats:            env.stats,
		Tokens:           ts,
		ConvertTimeout:   time.Second,
		BatchMaxLinks:    3,
		BatchConcurrency: 2,
	}
	engine := gee.New()
	RegisterPublicRoutes(engine, d)
	RegisterAPIRoutes(engine.Group("/api/v1"), d)
	env.engine = engine
	return env
}

func (e *testEnv) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestLegacyConvert(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/convert?link=https%3A%2F%2Fhoobuy.com%2Fproduct%2F2%2F8877&agent=hoobuy", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeJSON[linkconv.ConversionResult](t, w)
	assert.True(t, res.IsValid)
	assert.Equal(t, linkconv.Weidian, res.Marketplace)
	assert.Equal(t, "8877", res.ProductID)
	assert.True(t, res.IsAgent)
	assert.Equal(t, "https://hoobuy.com/product/2/8877?inviteCode=AXnBBwX7", res.AgentLink)

	events := env.events.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, stats.KindConversion, events[0].Kind)
	assert.Equal(t, "valid", events[0].Conversion.Outcome)
	assert.Equal(t, "HooBuy", events[0].Conversion.SourceAgent)

	// 解析失败仍然是 200
	w = env.do(http.MethodGet, "/convert?link=not-a-link", "")
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeJSON[linkconv.ConversionResult](t, w)
	assert.False(t, res.IsValid)
	assert.NotEmpty(t, res.Error)

	w = env.do(http.MethodGet, "/convert", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertAPI(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/convert", `{"link":"https://item.taobao.com/item.htm?id=123","agent":"cssbuy"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeJSON[linkconv.ConversionResult](t, w)
	assert.Equal(t, "https://item.taobao.com/item.htm?id=123", res.RawLink)
	assert.Equal(t, "https://cssbuy.com/item-123.html", res.AgentLink)

	w = env.do(http.MethodPost, "/api/v1/convert", `{"link":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/v1/convert", `{"url":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertBatchAPI(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/convert/batch",
		`{"links":["https://weidian.com/item.html?itemID=5","garbage","https://detail.1688.com/offer/77.html"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[BatchResponse](t, w)
	assert.Len(t, resp.BatchID, 36)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, linkconv.Weidian, resp.Results[0].Marketplace)
	assert.False(t, resp.Results[1].IsValid)
	assert.Equal(t, "77", resp.Results[2].ProductID)

	events := env.events.snapshot()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, resp.BatchID, e.Conversion.BatchID)
	}

	w = env.do(http.MethodPost, "/api/v1/convert/batch", `{"links":["a","b","c","d"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, "/api/v1/convert/batch", `{"links":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)
	agents := decodeJSON[[]linkconv.AgentDescriptor](t, w)
	assert.Len(t, agents, 25)
	assert.Equal(t, "kakobuy", agents[0].Key)

	w = env.do(http.MethodGet, "/api/v1/agents/hoobuy/link?platform=weidian&id=9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://hoobuy.com/product/2/9?inviteCode=AXnBBwX7", decodeJSON[LinkResponse](t, w).Link)

	w = env.do(http.MethodGet, "/api/v1/agents/hoobuy/link?platform=weidian&id=9&code=mine", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasSuffix(decodeJSON[LinkResponse](t, w).Link, "/hoobuy/weidian/9/mine"))

	w = env.do(http.MethodGet, "/api/v1/agents/nosuch/link?platform=weidian&id=9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/v1/agents/hoobuy/link?platform=amazon&id=9", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/links?platform=1688&id=42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON[[]linkconv.AgentLink](t, w), 25)

	w = env.do(http.MethodGet, "/api/v1/marketplace/link?platform=1688&id=42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://detail.1688.com/offer/42.html", decodeJSON[LinkResponse](t, w).Link)

	w = env.do(http.MethodGet, "/api/v1/marketplace/link?platform=taobao&id=%21%21", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentRedirect(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/hoobuy/weidian/9/creator1", "", "User-Agent", "ua-test")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://hoobuy.com/product/2/9?inviteCode=creator1", w.Header().Get("Location"))

	w = env.do(http.MethodGet, "/HooBuy/taobao/5", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://hoobuy.com/product/1/5?inviteCode=AXnBBwX7", w.Header().Get("Location"))

	w = env.do(http.MethodHead, "/hoobuy/taobao/5", "")
	assert.Equal(t, http.StatusFound, w.Code)

	events := env.events.snapshot()
	require.Len(t, events, 3)
	click := events[0].Click
	require.NotNil(t, click)
	assert.Equal(t, "hoobuy", click.Agent)
	assert.Equal(t, "weidian", click.Platform)
	assert.Equal(t, "9", click.ProductID)
	assert.Equal(t, "creator1", click.Code)
	assert.Equal(t, "ua-test", click.UserAgent)

	w = env.do(http.MethodGet, "/nosuch/taobao/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"unknown agent"`)
	w = env.do(http.MethodGet, "/hoobuy/amazon/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, env.events.snapshot(), 3)
}

func TestCompactRedirect(t *testing.T) {
	env := newTestEnv(t)
	code, err := env.codec.Encode("hoobuy", linkconv.Weidian, "746534604815")
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/s/"+code, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://hoobuy.com/product/2/746534604815?inviteCode=AXnBBwX7", w.Header().Get("Location"))

	w = env.do(http.MethodGet, "/s/!!!", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	admin, err := env.tokens.Sign("ops", auth.RoleAdmin)
	require.NoError(t, err)
	viewer, err := env.tokens.Sign("someone", "viewer")
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/v1/admin/resolve", `{"item":"https://item.taobao.com/item.htm?id=1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/api/v1/admin/resolve", `{"item":"x"}`, "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/v1/admin/resolve",
		`{"marketplace":"weidian","item":"12345"}`, "Authorization", "Bearer "+admin)
	require.Equal(t, http.StatusOK, w.Code)
	r := decodeJSON[linkconv.Resolution](t, w)
	assert.Equal(t, linkconv.Resolution{Marketplace: linkconv.Weidian, ProductID: "12345", RawURL: "https://weidian.com/item.html?itemID=12345"}, r)

	w = env.do(http.MethodPost, "/api/v1/admin/resolve", `{"item":"hello"}`, "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), linkconv.ErrResolveFromInput.Error())

	before := time.Now()
	w = env.do(http.MethodGet, "/api/v1/admin/stats?since=2h", "", "Authorization", "Bearer "+admin)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decodeJSON[repo.Summary](t, w)
	require.Len(t, sum.Agents, 1)
	assert.Equal(t, int64(3), sum.Agents[0].Clicks)
	assert.WithinDuration(t, before.Add(-2*time.Hour), env.stats.since, 5*time.Second)

	w = env.do(http.MethodGet, "/api/v1/admin/stats?since=-1h", "", "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.stats.err = errors.New("db down")
	w = env.do(http.MethodGet, "/api/v1/admin/stats", "", "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatsDisabled(t *testing.T) {
	engine := gee.New()
	engine.GET("/stats", NewStatsHandler(nil))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
