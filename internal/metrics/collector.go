// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// RAG 指标
	ragRunsTotal   *prometheus.CounterVec
	ragRunDuration *prometheus.HistogramVec
	ragIterations  prometheus.Histogram
	ragChunksUsed  prometheus.Histogram
	llmTokensUsed  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.ragRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_runs_total",
			Help:      "Total number of RAG runs",
		},
		[]string{"status"},
	)

	c.ragRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_run_duration_seconds",
			Help:      "End-to-end RAG run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"status"},
	)

	c.ragIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_iterations_used",
			Help:      "Retrieval iterations used per RAG run",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	c.ragChunksUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_chunks_used",
			Help:      "Distinct evidence chunks per RAG run",
			Buckets:   []float64{0, 1, 3, 5, 10, 15, 25},
		},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"kind"},
	)

	return c
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRAGRun 记录一次 RAG 运行
func (c *Collector) RecordRAGRun(status string, duration time.Duration, iterations, chunks int) {
	c.ragRunsTotal.WithLabelValues(status).Inc()
	c.ragRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.ragIterations.Observe(float64(iterations))
	c.ragChunksUsed.Observe(float64(chunks))
}

// RecordTokenUsage 记录 Token 用量
func (c *Collector) RecordTokenUsage(prompt, completion int) {
	c.llmTokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	c.llmTokensUsed.WithLabelValues("completion").Add(float64(completion))
}
