package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	conversationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursechat_conversation_requests_total",
		Help: "Conversation turns processed, by assistant and outcome.",
	}, []string{"assistant", "status"})

	conversationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coursechat_conversation_duration_seconds",
		Help:    "End-to-end latency of a conversation turn.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"assistant"})

	generationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursechat_generation_errors_total",
		Help: "Upstream generation failures, by assistant.",
	}, []string{"assistant"})

	memoryCacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coursechat_memory_cache_operations_total",
		Help: "Memory artifact cache lookups, by artifact kind and result.",
	}, []string{"artifact", "result"})
)

// ObserveCache is wired into the memory composer's cache callback.
func ObserveCache(artifact string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	memoryCacheOps.WithLabelValues(artifact, result).Inc()
}
