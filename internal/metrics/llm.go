package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Language model metrics. The stage label is "rewrite" or "answer".
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of chat completion calls",
		},
		[]string{"model", "stage", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Chat completion duration in seconds, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "stage"},
	)

	LLMRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Chat completion attempts that were retried",
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Chat completion tokens consumed",
		},
		[]string{"model", "type"},
	)
)

// Pipeline outcome metrics.
var (
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Document ingestions by result",
		},
		[]string{"status"},
	)

	IngestedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingested_chunks",
			Help:      "Chunks produced per ingested document",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Conversational queries by outcome",
		},
		[]string{"outcome"},
	)

	IndexCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_cache_total",
			Help:      "Vector index cache hits and misses",
		},
		[]string{"result"},
	)
)

var llmOnce sync.Once

// RegisterPipelineMetrics registers LLM and pipeline collectors. Safe to call more than once.
func RegisterPipelineMetrics() {
	llmOnce.Do(func() {
		prometheus.MustRegister(
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMRetriesTotal,
			LLMTokensTotal,
			IngestionsTotal,
			IngestedChunks,
			AnswersTotal,
			IndexCacheTotal,
		)
	})
}
