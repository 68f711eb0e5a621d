// Package metrics provides Prometheus metrics export for the assistant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "aida"
	subsystem = "assistant"
)

// PrometheusExporter exports assistant metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Routing
	routeDispatch *prometheus.CounterVec

	// Tool call metrics
	toolCalls     *prometheus.CounterVec
	toolLatency   *prometheus.HistogramVec
	toolErrors    *prometheus.CounterVec
	loopOverflows prometheus.Counter

	// LLM metrics
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Semantic indexing
	embeddingQueueDepth prometheus.Gauge
	embeddingDropped    prometheus.Counter
	embeddingIndexed    *prometheus.CounterVec

	// Conversation
	conversationActive prometheus.Gauge
	interactions       *prometheus.CounterVec
}

var _ Recorder = (*PrometheusExporter)(nil)

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{
		registry:      registry,
		routeDispatch: counterVec("route_dispatch_total", "Utterances handled per route", "route", "status"),
		toolCalls:     counterVec("tool_calls_total", "Total number of tool calls", "tool_name", "status"),
		toolLatency:   histogramVec("tool_latency_seconds", "Tool call latency in seconds", cfg.LatencyBuckets, "tool_name"),
		toolErrors:    counterVec("tool_errors_total", "Total number of tool errors", "tool_name", "error_type"),
		loopOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_loop_overflow_total",
			Help:      "Tool loops stopped by the round limit",
		}),
		llmRequests: counterVec("llm_requests_total", "Total LLM requests", "model", "kind", "status"),
		llmLatency:  histogramVec("llm_latency_seconds", "LLM request latency in seconds", cfg.LatencyBuckets, "model", "kind"),
		llmTokens:   counterVec("llm_tokens_total", "Total LLM tokens consumed", "model", "token_type"),
		cacheHits:   counterVec("cache_hits_total", "Total number of cache hits", "cache_type"),
		cacheMisses: counterVec("cache_misses_total", "Total number of cache misses", "cache_type"),
		embeddingQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "embedding_queue_depth",
			Help:      "Messages waiting to be embedded",
		}),
		embeddingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "embedding_dropped_total",
			Help:      "Embedding jobs discarded because the queue was full",
		}),
		embeddingIndexed: counterVec("embedding_indexed_total", "Messages added to the semantic index", "status"),
		conversationActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversation_active",
			Help:      "1 while a conversation is active",
		}),
		interactions: counterVec("interactions_total", "Remembered interactions by source", "source"),
	}

	registry.MustRegister(
		e.routeDispatch,
		e.toolCalls,
		e.toolLatency,
		e.toolErrors,
		e.loopOverflows,
		e.llmRequests,
		e.llmLatency,
		e.llmTokens,
		e.cacheHits,
		e.cacheMisses,
		e.embeddingQueueDepth,
		e.embeddingDropped,
		e.embeddingIndexed,
		e.conversationActive,
		e.interactions,
	)

	return e
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRoute records which route handled an utterance.
func (e *PrometheusExporter) RecordRoute(route string, success bool) {
	e.routeDispatch.WithLabelValues(route, status(success)).Inc()
}

// RecordToolCall records a tool call metric.
func (e *PrometheusExporter) RecordToolCall(toolName string, latency time.Duration, success bool, errorType string) {
	if !success && errorType != "" {
		e.toolErrors.WithLabelValues(toolName, errorType).Inc()
	}
	e.toolCalls.WithLabelValues(toolName, status(success)).Inc()
	e.toolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}

func (e *PrometheusExporter) RecordToolLoopOverflow() {
	e.loopOverflows.Inc()
}

// RecordLLMCall records latency and outcome of one model request. kind is chat, tools or vision.
func (e *PrometheusExporter) RecordLLMCall(model, kind string, latency time.Duration, success bool) {
	e.llmRequests.WithLabelValues(model, kind, status(success)).Inc()
	e.llmLatency.WithLabelValues(model, kind).Observe(latency.Seconds())
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(model, tokenType string, count int) {
	if count <= 0 {
		return
	}
	e.llmTokens.WithLabelValues(model, tokenType).Add(float64(count))
}

func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

func (e *PrometheusExporter) SetEmbeddingQueueDepth(depth int) {
	e.embeddingQueueDepth.Set(float64(depth))
}

func (e *PrometheusExporter) RecordEmbeddingDropped() {
	e.embeddingDropped.Inc()
}

func (e *PrometheusExporter) RecordEmbeddingIndexed(success bool) {
	e.embeddingIndexed.WithLabelValues(status(success)).Inc()
}

func (e *PrometheusExporter) SetConversationActive(active bool) {
	if active {
		e.conversationActive.Set(1)
		return
	}
	e.conversationActive.Set(0)
}

// RecordInteraction counts a persisted user/assistant exchange. source is action or llm.
func (e *PrometheusExporter) RecordInteraction(source string) {
	e.interactions.WithLabelValues(source).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
