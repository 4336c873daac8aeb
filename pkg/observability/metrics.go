// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the consensus service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ConfidenceBuckets spans the [0, 1] confidence range.
var ConfidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// ProviderRequestsTotal counts calls sent to backend providers. Status is
	// "ok" or a provider error kind.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StageDuration records per-stage wall-clock time.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_stage_duration_seconds",
			Help:    "Stage duration",
			Buckets: LLMBuckets,
		},
		[]string{"domain", "stage"},
	)

	// StageConfidence records the consensus confidence of each completed stage.
	StageConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consensus_stage_confidence",
			Help:    "Stage confidence",
			Buckets: ConfidenceBuckets,
		},
		[]string{"domain", "stage"},
	)

	// AnalysesTotal counts finished analyses by outcome
	// (completed, no_provider_succeeded, invalid_input, cancelled).
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_analyses_total",
			Help: "Analyses by outcome",
		},
		[]string{"domain", "outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by a rate limiter.
	// Scope is "provider" for client-side provider buckets or the auth tier.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StageDuration,
		StageConfidence,
		AnalysesTotal,
		RateLimitRejectedTotal,
	)
}
