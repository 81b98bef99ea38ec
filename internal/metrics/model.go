package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model-call and embedding Prometheus metrics.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "model_requests_total",
			Help:      "Total number of chat-completion requests",
		},
		[]string{"model", "stage", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doseaudit",
			Name:      "model_request_duration_seconds",
			Help:      "Chat-completion request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "stage"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "model_tokens_total",
			Help:      "Total chat-completion tokens consumed",
		},
		[]string{"model", "stage", "type"},
	)

	ModelRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "model_retries_total",
			Help:      "Total chat-completion retries after transient failures",
		},
		[]string{"model", "stage"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doseaudit",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ValidationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "validation_decisions_total",
			Help:      "Validation pipeline outcomes by decision",
		},
		[]string{"decision"},
	)

	ChunksIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "doseaudit",
			Name:      "chunks_ingested_total",
			Help:      "Total corpus chunks written by the ingestion pipeline",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers model, embedding, and pipeline metrics.
// Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ModelRequestsTotal)
	prometheus.MustRegister(ModelRequestDuration)
	prometheus.MustRegister(ModelTokensTotal)
	prometheus.MustRegister(ModelRetriesTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(ValidationDecisionsTotal)
	prometheus.MustRegister(ChunksIngestedTotal)
	pipelineMetricsRegistered = true
}
