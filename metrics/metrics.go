// Package metrics 定义推荐引擎的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal 推荐缓存刷新次数，result: ok / error
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estaterec_refresh_total",
			Help: "Total number of recommendation cache refresh runs",
		},
		[]string{"result"},
	)

	// RefreshCoalesced 被正在进行的刷新合并掉的触发次数
	RefreshCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estaterec_refresh_coalesced_total",
			Help: "Refresh requests satisfied by an in-flight run",
		},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estaterec_refresh_duration_seconds",
			Help:    "Duration of recommendation cache refresh runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CachedUsers 当前缓存中的用户数
	CachedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "estaterec_cached_users",
			Help: "Number of users in the recommendation cache",
		},
	)

	// Interactions like/unlike 次数，op: create / delete，result: ok / duplicate / error
	Interactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estaterec_interactions_total",
			Help: "Interaction writes by operation and result",
		},
		[]string{"op", "result"},
	)

	// Recommendations 推荐请求按来源计数，source: popular / collaborative
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estaterec_recommendations_total",
			Help: "Recommendation requests by answering source",
		},
		[]string{"source"},
	)

	// SearchDuration 语义搜索 / 统计耗时，op: search / stats
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estaterec_search_duration_seconds",
			Help:    "Duration of semantic search and statistics requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// EmbeddingErrors 向量化失败次数，reason: upstream / breaker_open
	EmbeddingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estaterec_embedding_errors_total",
			Help: "Embedding failures by reason",
		},
		[]string{"reason"},
	)

	// EmbeddingCacheHits / EmbeddingCacheMisses 房源向量缓存命中情况
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estaterec_embedding_cache_hits_total",
			Help: "Listing embedding cache hits",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estaterec_embedding_cache_misses_total",
			Help: "Listing embedding cache misses",
		},
	)
)
