// Package middleware provides cross-cutting infrastructure shared by the
// consolidation pipeline, currently Prometheus-backed metrics collection.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fintora/counsel/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector on the global
// Prometheus registry. It records provider request counts, latency, and
// token consumption for the answer, consolidation, and rating rounds.
type PrometheusMetrics struct {
	requestCounter *prometheus.CounterVec
	tokenCounter   *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	gauges         *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the pipeline's metric families with the
// default registry. Construct it once per process; duplicate registration
// panics inside promauto.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		requestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total LLM requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		tokenCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total tokens consumed by provider, model, and direction.",
			},
			[]string{"provider", "model", "status", "token_type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_latency_seconds",
				Help:    "LLM request latency by provider, model, and outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		gauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "counsel_pipeline_state",
				Help: "Point-in-time pipeline state values.",
			},
			[]string{"metric"},
		),
	}
}

func labelOr(labels map[string]string, key, def string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return def
}

// RecordLatency records an operation duration as a latency observation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.latency.WithLabelValues(
		labelOr(labels, "provider", operation),
		labelOr(labels, "model", "unknown"),
		labelOr(labels, "status", "success"),
	).Observe(duration.Seconds())
}

// RecordHistogram records a raw observation, routed by metric name.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_latency_seconds":
		pm.latency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Observe(value)
	default:
		pm.gauges.WithLabelValues(metric).Set(value)
	}
}

// RecordCounter increments a counter, routed by metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_requests_total":
		pm.requestCounter.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Add(value)
	case "llm_tokens_total":
		pm.tokenCounter.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pm.requestCounter.WithLabelValues(
			labelOr(labels, "provider", metric),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "success"),
		).Add(value)
	}
}

// RecordGauge sets a point-in-time state value.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}
