// Package metrics exposes the Prometheus collectors for the chat service and the ingestion pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "iasistente"

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatRequestsTotal counts chat outcomes: ok, invalid, not_found, index_load, error.
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total chat requests by outcome",
		},
		[]string{"outcome"},
	)

	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Total document ingestions by status and error kind",
		},
		[]string{"status", "kind"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total requests to the model provider",
		},
		[]string{"operation", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Model provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "model"},
	)

	// ChainCacheEvents counts chain cache lookups: hit, miss, stale, evict.
	ChainCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_cache_events_total",
			Help:      "Chain cache hits, misses, stale reloads and evictions",
		},
		[]string{"event"},
	)

	EmbeddingCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_events_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		ChatRequestsTotal,
		IngestionsTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ChainCacheEvents,
		EmbeddingCacheEvents,
	)
}

// ObserveProvider records one provider call.
func ObserveProvider(operation, model string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderRequestsTotal.WithLabelValues(operation, model, status).Inc()
	ProviderRequestDuration.WithLabelValues(operation, model).Observe(seconds)
}
