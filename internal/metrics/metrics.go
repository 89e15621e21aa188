// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLMCalls counts LLM invocations by provider and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "LLM calls by provider, fallback flag, and status.",
	}, []string{"provider", "fallback", "status"})

	// LLMLatency observes LLM call latency per provider.
	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finbot",
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "LLM call latency by provider.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"provider"})

	// ToolExecutions counts tool dispatches by tool name and status.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Tool executions by name and status.",
	}, []string{"tool", "status"})
)
