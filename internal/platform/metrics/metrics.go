package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 同名指标重复注册会 panic
	once sync.Once

	// route 用路由模板（/:agent/:platform/:pid），不要用真实 path，否则 label 基数无限增长
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// outcome: valid / degraded / invalid / error
	// step: 解析在哪一步结束，例如 extract、text、probe、follow、reject
	Conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkconv_conversions_total",
			Help: "Link conversions by outcome and the pipeline step that produced it.",
		},
		[]string{"outcome", "step"},
	)

	// op: follow / probe，outcome: ok / error
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkconv_fetch_total",
			Help: "Outbound fetches made while resolving links.",
		},
		[]string{"op", "outcome"},
	)

	FetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkconv_fetch_duration_seconds",
			Help:    "Outbound fetch latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5, 8},
		},
		[]string{"op"},
	)

	// layer: l1 / l2，result: hit / hit_negative / miss / error / skip
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Result cache lookups by layer and result.",
		},
		[]string{"layer", "result"},
	)

	AgentRedirects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkconv_redirects_total",
			Help: "Short agent link redirects served.",
		},
		[]string{"agent"},
	)

	// 收集器队列满时丢弃的事件数
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkconv_events_dropped_total",
			Help: "Stats events dropped because the collector buffer was full.",
		},
	)
)

// Init 注册指标，只执行一次。
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			Conversions,
			FetchTotal,
			FetchDurationSeconds,
			CacheOperations,
			AgentRedirects,
			EventsDropped,
		)
	})
}
