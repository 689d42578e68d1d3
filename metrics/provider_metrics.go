package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ProviderMetricsCollector struct {
	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	RateLimited *prometheus.CounterVec
	StaleServed *prometheus.CounterVec
}

var providerCollector *ProviderMetricsCollector

func getProviderCollector() *ProviderMetricsCollector {
	if providerCollector == nil {
		providerCollector = &ProviderMetricsCollector{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_provider_requests_total",
					Help: "The total number of upstream status requests",
				},
				[]string{"city", "outcome"},
			),
			Latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "alertmtl_provider_duration_seconds",
					Help:    "Upstream status request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"city"},
			),
			RateLimited: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_provider_rate_limited_total",
					Help: "The total number of refreshes skipped by the client-side rate limit",
				},
				[]string{"city"},
			),
			StaleServed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_status_stale_served_total",
					Help: "The total number of stale snapshots served while the upstream was failing",
				},
				[]string{"city"},
			),
		}
	}
	return providerCollector
}

// ProviderMetrics records upstream request outcomes for one city
type ProviderMetrics struct {
	city      string
	collector *ProviderMetricsCollector
}

func NewProviderMetrics(city string) *ProviderMetrics {
	return &ProviderMetrics{
		city:      city,
		collector: getProviderCollector(),
	}
}

func (m *ProviderMetrics) RecordRequest(outcome string, seconds float64) {
	m.collector.Requests.WithLabelValues(m.city, outcome).Inc()
	m.collector.Latency.WithLabelValues(m.city).Observe(seconds)
}

func (m *ProviderMetrics) RecordRateLimited() {
	m.collector.RateLimited.WithLabelValues(m.city).Inc()
}

func (m *ProviderMetrics) RecordStaleServed() {
	m.collector.StaleServed.WithLabelValues(m.city).Inc()
}
