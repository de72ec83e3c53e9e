package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jessica_core_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "jessica_core_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "jessica_core_provider_latency_seconds",
			Help: "Chat provider call latency in seconds",
		},
		[]string{"provider"},
	)

	ToolIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jessica_core_tool_iterations",
			Help:    "Tool-call iterations per chat request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jessica_core_memory_operations_total",
			Help: "Total number of memory operations",
		},
		[]string{"provider", "operation", "outcome"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jessica_core_token_refreshes_total",
			Help: "OAuth token refresh attempts",
		},
		[]string{"outcome"},
	)
)
