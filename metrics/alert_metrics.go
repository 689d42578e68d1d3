package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type AlertMetricsCollector struct {
	Transitions   *prometheus.CounterVec
	Sent          *prometheus.CounterVec
	Suppressed    *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
}

var alertCollector *AlertMetricsCollector

func getAlertCollector() *AlertMetricsCollector {
	if alertCollector == nil {
		alertCollector = &AlertMetricsCollector{
			Transitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_status_transitions_total",
					Help: "The total number of detected state transitions",
				},
				[]string{"city", "to_state"},
			),
			Sent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_alerts_sent_total",
					Help: "The total number of alert emails sent",
				},
				[]string{"kind"},
			),
			Suppressed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_alerts_suppressed_total",
					Help: "The total number of alerts suppressed as duplicates",
				},
				[]string{"kind"},
			),
			Failed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "alertmtl_alerts_failed_total",
					Help: "The total number of alert deliveries that failed",
				},
				[]string{"kind"},
			),
			CycleDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "alertmtl_check_cycle_duration_seconds",
					Help:    "Duration of one full check cycle in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"check"},
			),
		}
	}
	return alertCollector
}

// AlertMetrics records transition detection and alert delivery outcomes
type AlertMetrics struct {
	collector *AlertMetricsCollector
}

func NewAlertMetrics() *AlertMetrics {
	return &AlertMetrics{
		collector: getAlertCollector(),
	}
}

func (m *AlertMetrics) RecordTransition(city, toState string) {
	m.collector.Transitions.WithLabelValues(city, toState).Inc()
}

func (m *AlertMetrics) RecordSent(kind string) {
	m.collector.Sent.WithLabelValues(kind).Inc()
}

func (m *AlertMetrics) RecordSuppressed(kind string) {
	m.collector.Suppressed.WithLabelValues(kind).Inc()
}

func (m *AlertMetrics) RecordFailed(kind string) {
	m.collector.Failed.WithLabelValues(kind).Inc()
}

func (m *AlertMetrics) ObserveCycle(check string, seconds float64) {
	m.collector.CycleDuration.WithLabelValues(check).Observe(seconds)
}
