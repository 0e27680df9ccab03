// Package metrics 提供 NPHIES 助手的业务指标收集。
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nphies"

// 查询结果标签值。
const (
	OutcomeGenerated = "generated"
	OutcomeCanned    = "canned"
	OutcomeCached    = "cached"
	OutcomeError     = "error"
)

// Metrics NPHIES 助手业务指标。
type Metrics struct {
	registry *prometheus.Registry

	// 查询指标
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec

	// 索引指标
	indexBuilds        *prometheus.CounterVec
	indexBuildDuration prometheus.Histogram
	indexChunks        prometheus.Gauge
	corpusStale        prometheus.Gauge

	// 缓存指标
	cacheLookups *prometheus.CounterVec

	// LLM 调用指标
	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec

	queriesTotal  atomic.Uint64
	queriesErrors atomic.Uint64
	queriesCanned atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	startTime     time.Time
}

// New 创建使用独立注册表的指标实例。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of answered queries",
			},
			[]string{"language", "outcome"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"language"},
		),
		indexBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_builds_total",
				Help:      "Total number of index builds",
			},
			[]string{"status"},
		),
		indexBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_build_duration_seconds",
				Help:      "Index build duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		indexChunks: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_chunks",
				Help:      "Number of chunks in the ready index",
			},
		),
		corpusStale: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "corpus_stale",
				Help:      "1 when the corpus changed after the index was built",
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answer_cache_lookups_total",
				Help:      "Answer cache lookups by result",
			},
			[]string{"result"},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Embedding and generation calls by status",
			},
			[]string{"kind", "status"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Embedding and generation call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		startTime: time.Now(),
	}
}

// Registry 返回底层注册表。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordQuery 记录一次查询。
func (m *Metrics) RecordQuery(language, outcome string, duration time.Duration) {
	m.queries.WithLabelValues(language, outcome).Inc()
	m.queryDuration.WithLabelValues(language).Observe(duration.Seconds())

	m.queriesTotal.Add(1)
	switch outcome {
	case OutcomeError:
		m.queriesErrors.Add(1)
	case OutcomeCanned:
		m.queriesCanned.Add(1)
	}
}

// RecordIndexBuild 记录一次索引构建。
func (m *Metrics) RecordIndexBuild(chunks int, duration time.Duration, err error) {
	if err != nil {
		m.indexBuilds.WithLabelValues("failed").Inc()
		return
	}
	m.indexBuilds.WithLabelValues("ready").Inc()
	m.indexBuildDuration.Observe(duration.Seconds())
	m.indexChunks.Set(float64(chunks))
	m.corpusStale.Set(0)
}

// SetCorpusStale 标记语料在索引构建后已变化。
func (m *Metrics) SetCorpusStale(stale bool) {
	if stale {
		m.corpusStale.Set(1)
		return
	}
	m.corpusStale.Set(0)
}

// RecordCacheLookup 记录缓存查找结果：hit、miss 或 error。
func (m *Metrics) RecordCacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
	switch result {
	case "hit":
		m.cacheHits.Add(1)
	case "miss":
		m.cacheMisses.Add(1)
	}
}

// RecordLLMCall 记录一次 embed 或 generate 调用。
func (m *Metrics) RecordLLMCall(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.llmCalls.WithLabelValues(kind, status).Inc()
	m.llmDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Snapshot 查询计数快照。
type Snapshot struct {
	QueriesTotal  uint64  `json:"queries_total"`
	QueriesErrors uint64  `json:"queries_errors"`
	QueriesCanned uint64  `json:"queries_canned"`
	CacheHits     uint64  `json:"cache_hits"`
	CacheMisses   uint64  `json:"cache_misses"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Snapshot 返回当前计数。
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		QueriesTotal:  m.queriesTotal.Load(),
		QueriesErrors: m.queriesErrors.Load(),
		QueriesCanned: m.queriesCanned.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		UptimeSeconds: time.Since(m.startTime).Seconds(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	return s
}
