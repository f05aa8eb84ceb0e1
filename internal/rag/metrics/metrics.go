// Package metrics 提供 RAG 服务的 Prometheus 业务指标。
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kart-io/pdfrag/internal/rag/store"
	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// Query status label values.
const (
	StatusStarted   = "started"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	statusSuccess = "success"
	statusError   = "error"
)

// RAGMetrics RAG 服务业务指标。
type RAGMetrics struct {
	// 查询指标
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	ErrorsTotal   *prometheus.CounterVec

	// 向量库指标
	VectorOperations *prometheus.CounterVec
	DocumentChunks   *prometheus.GaugeVec

	// 嵌入缓存指标
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// LLM 调用指标
	LLMDuration *prometheus.HistogramVec

	// HTTP 指标
	HTTPRequests *prometheus.CounterVec
}

var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// GetRAGMetrics 获取注册在默认 Registerer 上的全局指标实例。
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = NewRAGMetrics(prometheus.DefaultRegisterer)
	})
	return globalRAGMetrics
}

// NewRAGMetrics creates the metric set and registers it with reg.
func NewRAGMetrics(reg prometheus.Registerer) *RAGMetrics {
	f := promauto.With(reg)
	return &RAGMetrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_queries_total",
				Help: "Total number of RAG queries by collection and status",
			},
			[]string{"collection", "status"},
		),
		QueryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_query_duration_seconds",
				Help:    "RAG query duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		),
		ErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_errors_total",
				Help: "Total number of RAG errors by type",
			},
			[]string{"error_type"},
		),
		VectorOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vector_operations_total",
				Help: "Total number of vector index operations",
			},
			[]string{"operation", "status"},
		),
		DocumentChunks: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "document_chunks_total",
				Help: "Number of chunks stored per collection",
			},
			[]string{"collection"},
		),
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_hits_total",
				Help: "Total number of embedding cache hits",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Name: "embedding_cache_misses_total",
				Help: "Total number of embedding cache misses",
			},
		),
		LLMDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Language model request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// QueryStarted 记录查询开始。
func (m *RAGMetrics) QueryStarted(collection string) {
	m.QueriesTotal.WithLabelValues(collection, StatusStarted).Inc()
}

// QueryFinished 记录查询结束及耗时，失败时同时累加错误类型计数。
func (m *RAGMetrics) QueryFinished(collection string, duration time.Duration, err error) {
	m.QueryDuration.Observe(duration.Seconds())
	if err != nil {
		m.QueriesTotal.WithLabelValues(collection, StatusFailed).Inc()
		m.RecordError(err)
		return
	}
	m.QueriesTotal.WithLabelValues(collection, StatusSucceeded).Inc()
}

// RecordError 按错误类型计数。
func (m *RAGMetrics) RecordError(err error) {
	if err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(ErrorType(err)).Inc()
}

// RecordVectorOperation 记录一次向量库操作结果。
func (m *RAGMetrics) RecordVectorOperation(op string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.VectorOperations.WithLabelValues(op, status).Inc()
}

// SetDocumentChunks 更新集合的分块数量。
func (m *RAGMetrics) SetDocumentChunks(collection string, count int64) {
	m.DocumentChunks.WithLabelValues(collection).Set(float64(count))
}

// ObserveLLM 记录一次模型调用耗时，operation 为 embed 或 chat。
func (m *RAGMetrics) ObserveLLM(operation string, duration time.Duration) {
	m.LLMDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest 记录一次 HTTP 请求。
func (m *RAGMetrics) RecordHTTPRequest(method, path string, status int) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IndexHooks returns hooks that feed the vector index metrics.
func (m *RAGMetrics) IndexHooks() store.Hooks {
	return store.Hooks{
		OnOperation:  m.RecordVectorOperation,
		OnChunkCount: m.SetDocumentChunks,
	}
}

// CacheHooks returns hooks that feed the embedding cache counters.
func (m *RAGMetrics) CacheHooks() llm.CacheHooks {
	return llm.CacheHooks{
		OnHit:  func(n int) { m.CacheHits.Add(float64(n)) },
		OnMiss: func(n int) { m.CacheMisses.Add(float64(n)) },
	}
}

// ErrorType 将错误映射为 rag_errors_total 的 error_type 标签。
func ErrorType(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrRAGBadRequest.Code:
		return "bad_request"
	case errors.ErrRAGValidation.Code:
		return "validation"
	case errors.ErrRAGCollectionNotFound.Code:
		return "collection_not_found"
	case errors.ErrRAGDocumentProcessing.Code:
		return "document_processing"
	case errors.ErrRAGEmbedding.Code:
		return "embedding"
	case errors.ErrRAGVectorStore.Code:
		return "vector_store"
	case errors.ErrRAGModelUnavailable.Code:
		return "model_unavailable"
	case errors.ErrRAGConfiguration.Code:
		return "configuration"
	case errors.ErrTimeout.Code:
		return "timeout"
	default:
		return "internal"
	}
}
